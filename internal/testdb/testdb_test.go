package testdb

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/agrilinkhq/mandi-backend/pkg/db/models"
	"github.com/agrilinkhq/mandi-backend/pkg/enums"
)

// Ids minted by the column defaults must round-trip through uuid.UUID bind
// parameters, otherwise rows created inside the services are unfindable by
// every later lookup.
func TestGeneratedIDsRoundTripAsUUIDs(t *testing.T) {
	conn := Open(t)

	counterparty := uuid.New()
	payment := &models.Payment{
		ShopID:          uuid.New(),
		PayerRole:       enums.PartyRoleShop,
		PayeeRole:       enums.PartyRoleFarmer,
		CounterpartyID:  &counterparty,
		Amount:          decimal.NewFromInt(1000),
		AllocatedAmount: decimal.Zero,
		Method:          enums.PaymentMethodCash,
		Status:          enums.PaymentStatusPaid,
	}
	require.NoError(t, conn.Create(payment).Error)
	require.NotEqual(t, uuid.Nil, payment.ID, "default id should be readable back into the model")

	var raw string
	require.NoError(t, conn.Raw("SELECT id FROM payments").Scan(&raw).Error)
	parsed, err := uuid.Parse(raw)
	require.NoError(t, err, "stored id %q must be canonical uuid text", raw)
	require.Equal(t, payment.ID, parsed)

	var found models.Payment
	require.NoError(t, conn.Where("id = ?", payment.ID).First(&found).Error)
	require.Equal(t, counterparty, *found.CounterpartyID)
}
