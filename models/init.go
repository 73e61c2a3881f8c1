package models

import "gorm.io/gorm"

// Migrate creates/updates the schema for every model this service owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Company{},
		&User{},
		&Market{},
		&PhoneNumber{},
		&Prospect{},
		&InternalDNC{},
		&LitigatorList{},
		&SMSTemplate{},
		&Campaign{},
		&CampaignStats{},
		&StatsBatch{},
		&CampaignProspect{},
		&SMSMessage{},
		&SMSResult{},
		&ReceiptSMSDirect{},
	)
}
