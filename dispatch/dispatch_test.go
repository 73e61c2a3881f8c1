package dispatch

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"leadpilot/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	// Every in-memory sqlite connection is its own database; keep the pool
	// on a single one so concurrent tests share state.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, models.Migrate(db))
	return db
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// fixture builds one company with a telnyx market, an active pooled number,
// a campaign with stats, a mobile prospect and its campaign prospect row.
type fixture struct {
	Company  models.Company
	Market   models.Market
	Phone    models.PhoneNumber
	Campaign models.Campaign
	Template models.SMSTemplate
	Prospect models.Prospect
	CP       models.CampaignProspect
}

func newFixture(t *testing.T, db *gorm.DB) *fixture {
	t.Helper()
	f := &fixture{}

	f.Company = models.Company{
		Name:                 "Maple Street Buyers",
		Timezone:             "UTC",
		SubscriptionStatus:   "active",
		ThresholdDays:        30,
		AutoFilterMessages:   true,
		MessagingStartHour:   0,
		MessagingEndHour:     24,
		OutgoingCompanyNames: models.StringSlice{"Maple Street Buyers", "MSB Homes"},
		OutgoingUserNames:    models.StringSlice{"Dana"},
	}
	require.NoError(t, db.Create(&f.Company).Error)
	// Column defaults would swallow the zero start hour on create.
	require.NoError(t, db.Model(&f.Company).UpdateColumn("messaging_start_hour", 0).Error)
	f.Company.MessagingStartHour = 0

	f.Market = models.Market{
		CompanyID:     f.Company.ID,
		Name:          "Denver",
		PhoneProvider: models.ProviderTelnyx,
	}
	require.NoError(t, db.Create(&f.Market).Error)

	f.Phone = models.PhoneNumber{
		CompanyID: f.Company.ID,
		MarketID:  f.Market.ID,
		Phone:     "3035550100",
		Status:    models.PhoneStatusActive,
		Provider:  models.ProviderTelnyx,
	}
	require.NoError(t, db.Create(&f.Phone).Error)

	f.Template = models.SMSTemplate{
		CompanyID:        f.Company.ID,
		TemplateName:     "intro",
		Message:          "Hi {FirstName}, interested in {StreetAddress}? - {CompanyName}",
		AlternateMessage: "Hi, we buy houses in your area. - {CompanyName}",
	}
	require.NoError(t, db.Create(&f.Template).Error)

	f.Campaign = models.Campaign{
		CompanyID:                f.Company.ID,
		MarketID:                 f.Market.ID,
		Name:                     "Denver Q3",
		SMSTemplateID:            &f.Template.ID,
		SkipProspectsWhoMessaged: true,
	}
	require.NoError(t, db.Create(&f.Campaign).Error)
	require.NoError(t, db.Create(&models.CampaignStats{CampaignID: f.Campaign.ID}).Error)

	f.Prospect = models.Prospect{
		CompanyID:       f.Company.ID,
		FirstName:       "Jordan",
		LastName:        "Avery",
		PhoneRaw:        "7205550123",
		PhoneType:       "mobile",
		PropertyAddress: "12 Elm St",
		PropertyCity:    "Denver",
		PropertyState:   "CO",
		PropertyZip:     "80014",
	}
	require.NoError(t, db.Create(&f.Prospect).Error)

	f.CP = models.CampaignProspect{
		CampaignID: f.Campaign.ID,
		ProspectID: f.Prospect.ID,
		SortOrder:  1,
	}
	require.NoError(t, db.Create(&f.CP).Error)

	return f
}

// load re-reads the fixture rows with the associations the pipeline expects.
func (f *fixture) load(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Preload("Market").Preload("Company").First(&f.Campaign, f.Campaign.ID).Error)
	require.NoError(t, db.Preload("Company").First(&f.Prospect, f.Prospect.ID).Error)
	require.NoError(t, db.First(&f.CP, f.CP.ID).Error)
	require.NoError(t, db.First(&f.Company, f.Company.ID).Error)
	require.NoError(t, db.First(&f.Market, f.Market.ID).Error)
}

func (f *fixture) newBatch(t *testing.T, db *gorm.DB) *models.StatsBatch {
	t.Helper()
	batch := models.StatsBatch{
		CampaignID:  f.Campaign.ID,
		MarketID:    f.Market.ID,
		Provider:    f.Market.PhoneProvider,
		BatchNumber: 1,
	}
	require.NoError(t, db.Create(&batch).Error)
	return &batch
}
