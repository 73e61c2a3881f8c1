package dispatch

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"leadpilot/models"
)

// Outcome is the skip policy's decision for one campaign prospect.
type Outcome struct {
	Skip   bool
	Reason models.SkipReason
}

// Continue is the outcome that lets the dispatch proceed to a send.
var Continue = Outcome{}

// SkipPolicy evaluates the ordered business rules that decide whether a
// prospect must be skipped. Rules are evaluated first match wins; a few of
// them perform corrective writes (marking a prospect DNC) that persist
// together with the skip decision.
type SkipPolicy struct {
	DB  *gorm.DB
	now func() time.Time
}

func NewSkipPolicy(db *gorm.DB) *SkipPolicy {
	return &SkipPolicy{DB: db, now: time.Now}
}

// Evaluate runs the skip rules for one campaign prospect. The batch is the
// stats batch already bound to the attempt; per-reason tallies land on it.
// Any returned error aborts the prospect's dispatch entirely.
func (p *SkipPolicy) Evaluate(cp *models.CampaignProspect, prospect *models.Prospect, campaign *models.Campaign, company *models.Company, batch *models.StatsBatch, forceSkip bool) (Outcome, error) {
	if company == nil || company.ID == 0 {
		return Continue, fmt.Errorf("campaign prospect %d has no company", cp.ID)
	}
	if campaign == nil || campaign.ID == 0 {
		return Continue, fmt.Errorf("campaign prospect %d has no campaign", cp.ID)
	}

	if forceSkip {
		return p.skip(cp, batch, models.SkipReasonForced, nil)
	}

	// Carrier-approved templates require a configured outgoing identity.
	if company.SendCarrierApprovedTemplates && !company.HasValidOutgoing() {
		return p.skip(cp, batch, models.SkipReasonOutgoingNotSet, nil)
	}

	// Verizon traffic is only deliverable through the Twilio market.
	if campaign.Market.PhoneProvider == models.ProviderDefault && prospect.IsVerizon() {
		return p.skip(cp, batch, models.SkipReasonVerizon, nil)
	}

	if prospect.OptedOut {
		return p.skip(cp, batch, models.SkipReasonOptedOut, nil)
	}

	if campaign.SkipProspectsWhoMessaged && prospect.HasRespondedViaSMS {
		return p.skip(cp, batch, models.SkipReasonHasResponded, nil)
	}

	// Threshold: any bulk send to this number within the company's cooldown
	// window blocks another one.
	if !company.ThresholdExempt {
		thresholdDate := p.now().AddDate(0, 0, -company.ThresholdDays)
		var count int64
		err := p.DB.Model(&models.ReceiptSMSDirect{}).
			Where("phone_raw = ? AND sent_date >= ?", prospect.PhoneRaw, thresholdDate).
			Count(&count).Error
		if err != nil {
			return Continue, err
		}
		if count > 0 {
			return p.skip(cp, batch, models.SkipReasonThreshold, nil)
		}
	}

	if prospect.DoNotCall {
		return p.skip(cp, batch, models.SkipReasonCompanyDNC, func(tx *gorm.DB) error {
			return incrementCampaignStat(tx, campaign.ID, "total_dnc_count")
		})
	}

	if prospect.WrongNumber {
		return p.skip(cp, batch, models.SkipReasonWrongNumber, func(tx *gorm.DB) error {
			return incrementCampaignStat(tx, campaign.ID, "total_wrong_number_count")
		})
	}

	// Internal DNC list membership not yet reflected on the prospect: mark it
	// DNC now and skip. Deliberately does not short-circuit, so the litigator
	// check below still runs and can stack its own corrective write.
	var internalDNCCount int64
	err := p.DB.Model(&models.InternalDNC{}).
		Where("phone_raw = ? AND company_id = ?", prospect.PhoneRaw, company.ID).
		Count(&internalDNCCount).Error
	if err != nil {
		return Continue, err
	}
	outcome := Continue
	if internalDNCCount > 0 {
		outcome, err = p.skip(cp, batch, models.SkipReasonPublicDNC, func(tx *gorm.DB) error {
			if err := p.markProspectDNC(tx, prospect); err != nil {
				return err
			}
			return incrementCampaignStat(tx, campaign.ID, "total_dnc_count")
		})
		if err != nil {
			return Continue, err
		}
	}

	var litigatorCount int64
	err = p.DB.Model(&models.LitigatorList{}).
		Where("phone = ?", prospect.PhoneRaw).
		Count(&litigatorCount).Error
	if err != nil {
		return Continue, err
	}
	if litigatorCount > 0 {
		return p.skip(cp, batch, models.SkipReasonLitigator, func(tx *gorm.DB) error {
			if err := p.markProspectDNC(tx, prospect); err != nil {
				return err
			}
			return incrementCampaignStat(tx, campaign.ID, "total_dnc_count")
		})
	}
	if outcome.Skip {
		return outcome, nil
	}

	// Duplicate-send guard: a direct receipt already exists for this
	// phone/campaign/company.
	var receiptCount int64
	err = p.DB.Model(&models.ReceiptSMSDirect{}).
		Where("phone_raw = ? AND campaign_id = ? AND company_id = ?", prospect.PhoneRaw, campaign.ID, company.ID).
		Count(&receiptCount).Error
	if err != nil {
		return Continue, err
	}
	if receiptCount > 0 {
		return p.skip(cp, batch, models.SkipReasonSMSReceipt, nil)
	}

	return Continue, nil
}

// skip persists the skip decision, the batch's per-reason tally and any
// corrective side effects in one transaction.
func (p *SkipPolicy) skip(cp *models.CampaignProspect, batch *models.StatsBatch, reason models.SkipReason, sideEffect func(tx *gorm.DB) error) (Outcome, error) {
	err := p.DB.Transaction(func(tx *gorm.DB) error {
		cp.MarkSkipped(reason)
		err := tx.Model(&models.CampaignProspect{}).Where("id = ?", cp.ID).
			Updates(map[string]interface{}{
				"sent":        false,
				"skipped":     true,
				"skip_reason": reason,
			}).Error
		if err != nil {
			return err
		}

		if batch != nil {
			if column := models.SkipCounterColumn(reason); column != "" {
				err = tx.Model(&models.StatsBatch{}).Where("id = ?", batch.ID).
					UpdateColumn(column, gorm.Expr(column+" + ?", 1)).Error
				if err != nil {
					return err
				}
			}
		}

		if sideEffect != nil {
			return sideEffect(tx)
		}
		return nil
	})
	if err != nil {
		return Continue, err
	}
	return Outcome{Skip: true, Reason: reason}, nil
}

// markProspectDNC is the corrective write for prospects discovered on a DNC
// or litigator list mid-evaluation.
func (p *SkipPolicy) markProspectDNC(tx *gorm.DB, prospect *models.Prospect) error {
	prospect.DoNotCall = true
	return tx.Model(&models.Prospect{}).Where("id = ?", prospect.ID).
		UpdateColumn("do_not_call", true).Error
}

func incrementCampaignStat(tx *gorm.DB, campaignID uint, column string) error {
	return tx.Model(&models.CampaignStats{}).Where("campaign_id = ?", campaignID).
		UpdateColumn(column, gorm.Expr(column+" + ?", 1)).Error
}
