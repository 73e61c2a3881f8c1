package dispatch

import (
	"regexp"
	"strings"

	"leadpilot/models"
	"leadpilot/utils"
)

var (
	tokenPattern        = regexp.MustCompile(`\{([^{}]+)\}`)
	companyIndexPattern = regexp.MustCompile(`\{CompanyName:([^}]*)\}`)
)

// MessageRenderer fills a template body from prospect and company data. When
// the prospect is missing a value for a required token, the template's
// alternate body is used instead.
type MessageRenderer struct{}

// RenderInput carries everything a single render needs. Campaign.Market must
// be loaded so the footer can pick the right variant.
type RenderInput struct {
	Template   *models.SMSTemplate
	Prospect   *models.Prospect
	Campaign   *models.Campaign
	Company    *models.Company
	SenderName string
}

// Render produces the final outbound body, opt-out footer included.
func (r *MessageRenderer) Render(in RenderInput) string {
	raw := in.Template.Message
	tags := utils.GetTags(raw)
	attrs := in.Prospect.MessageAttrs()

	useAlternate := false
	for _, tag := range tags {
		if utils.TagMappings[tag] != "" && attrs[tag] == "" {
			useAlternate = true
			break
		}
	}

	if !useAlternate {
		if hasTag(tags, "CompanyName") {
			if m := companyIndexPattern.FindStringSubmatch(raw); m != nil {
				if utils.ParseIndex(m[1]) >= len(in.Company.OutgoingCompanyNames) {
					useAlternate = true
				}
			} else if in.Company.RandomOutgoingCompanyName() == "" {
				useAlternate = true
			}
		} else if hasTag(tags, "UserFirstName") {
			senderFills := in.Company.UseSenderName && in.SenderName != ""
			if !senderFills && in.Company.RandomOutgoingUserName() == "" {
				useAlternate = true
			}
		}
	}

	// Twilio traffic carries the short registered footer; companies that
	// opted out of the optional footer drop it entirely on Twilio only.
	inTwilioMarket := in.Campaign.Market.PhoneProvider == models.ProviderTwilio
	postfix := ""
	if !(inTwilioMarket && !in.Company.EnableOptionalOptOut) {
		if inTwilioMarket {
			postfix = utils.OptOutLanguageTwilio
		} else {
			postfix = utils.OptOutLanguage
		}
	}

	if useAlternate {
		return in.Template.AlternateText(in.Company, postfix)
	}

	// A configured sender name wins over the random outgoing first name.
	if in.Company.UseSenderName && in.SenderName != "" {
		raw = strings.ReplaceAll(raw, "{UserFirstName}", in.SenderName)
	}

	// Indexed company tags pin a specific configured name.
	raw = companyIndexPattern.ReplaceAllStringFunc(raw, func(m string) string {
		sub := companyIndexPattern.FindStringSubmatch(m)
		return in.Company.OutgoingCompanyName(utils.ParseIndex(sub[1]))
	})

	rendered := tokenPattern.ReplaceAllStringFunc(raw, func(m string) string {
		tag := strings.Trim(m, "{}")
		if i := strings.Index(tag, ":"); i >= 0 {
			tag = tag[:i]
		}
		return attrs[tag]
	})

	return strings.ReplaceAll(rendered, "None", "") + postfix
}

func hasTag(tags []string, want string) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}
