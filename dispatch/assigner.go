package dispatch

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"leadpilot/models"
)

// PhoneAssigner picks the sending number for a prospect within a market.
// Assignment is round-robin over the market's active pool, with the cursor
// persisted on the market row.
type PhoneAssigner struct {
	DB *gorm.DB
}

func NewPhoneAssigner(db *gorm.DB) *PhoneAssigner {
	return &PhoneAssigner{DB: db}
}

// Assign returns the phone number to send from, or nil when the market has
// no active numbers. A nil number is a valid terminal state, not an error;
// the orchestrator records it as a non-retryable cannot-send.
func (a *PhoneAssigner) Assign(prospect *models.Prospect, campaign *models.Campaign) (*models.PhoneNumber, error) {
	market := &campaign.Market

	// Follow-up campaigns configured to retain numbers keep the prospect's
	// current one, as long as it is still live and its provider can deliver
	// in this market.
	if campaign.IsFollowup && campaign.RetainNumbers && prospect.PhoneNumberID != nil {
		var current models.PhoneNumber
		err := a.DB.First(&current, *prospect.PhoneNumberID).Error
		if err != nil && err != gorm.ErrRecordNotFound {
			return nil, err
		}
		if err == nil && !current.IsReleased() && a.compatibleWithMarket(&current, market) {
			return &current, nil
		}
	}

	var assigned *models.PhoneNumber
	err := a.DB.Transaction(func(tx *gorm.DB) error {
		// Lock the market row so concurrent jobs advance the cursor one at
		// a time.
		var locked models.Market
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&locked, market.ID).Error
		if err != nil {
			return err
		}

		var pool []models.PhoneNumber
		err = tx.Where("market_id = ? AND status = ?", market.ID, models.PhoneStatusActive).
			Order("created_at DESC").
			Find(&pool).Error
		if err != nil {
			return err
		}
		if len(pool) == 0 {
			return nil
		}

		index := locked.LastIndexAssigned + 1
		if index > len(pool)-1 {
			index = 0
		}
		err = tx.Model(&models.Market{}).Where("id = ?", market.ID).
			UpdateColumn("last_index_assigned", index).Error
		if err != nil {
			return err
		}
		market.LastIndexAssigned = index

		assigned = &pool[index]
		prospect.PhoneNumberID = &assigned.ID
		return tx.Model(&models.Prospect{}).Where("id = ?", prospect.ID).
			UpdateColumn("phone_number_id", assigned.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return assigned, nil
}

// compatibleWithMarket rejects keeping a number whose provider can't deliver
// through the market, e.g. a non-Twilio number moving into a Twilio market.
func (a *PhoneAssigner) compatibleWithMarket(number *models.PhoneNumber, market *models.Market) bool {
	if market.PhoneProvider == models.ProviderTwilio && number.Provider != models.ProviderTwilio {
		return false
	}
	return true
}
