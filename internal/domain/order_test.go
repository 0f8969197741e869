package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeTotal(t *testing.T) {
	assert.Equal(t, 2650.0, ComputeTotal(2500, 150, 0))
	assert.Equal(t, 0.3, ComputeTotal(0.1, 0.2, 0))
	assert.Equal(t, 0.0, ComputeTotal(100, 0, 500))
	assert.Equal(t, 2550.5, ComputeTotal(2500, 60.5, 10))
}

func TestSumItems(t *testing.T) {
	items := []OrderItem{{Quantity: 3, Price: 19.99}, {Quantity: 1, Price: 0.03}}
	assert.Equal(t, 60.0, SumItems(items))
	assert.Zero(t, SumItems(nil))
}

func TestAmountToCollect(t *testing.T) {
	o := &Order{PaymentMethod: PaymentMethodCOD, PaymentStatus: PaymentStatusUnpaid, TotalAmount: 2649.6}
	assert.Equal(t, 2650.0, o.AmountToCollect())

	o.PaymentStatus = PaymentStatusPaid
	assert.Zero(t, o.AmountToCollect())

	o.PaymentMethod, o.PaymentStatus = PaymentMethodEsewa, PaymentStatusUnpaid
	assert.Zero(t, o.AmountToCollect())
}

func TestClearAssignmentAndClone(t *testing.T) {
	o := &Order{
		DeliveryType:  DeliveryTypeExternal,
		Courier:       Ptr("pathao"),
		TrackingCode:  Ptr("PTH123"),
		CourierCityID: Ptr(int64(1)),
		Items:         []OrderItem{{VariantID: Ptr("v1"), Quantity: 1}},
	}
	assert.True(t, o.IsAssigned())
	assert.True(t, o.HasRemoteDispatch())

	c := o.Clone()
	*c.TrackingCode = "CHANGED"
	c.Items[0].Quantity = 5
	assert.Equal(t, "PTH123", *o.TrackingCode)
	assert.Equal(t, 1, o.Items[0].Quantity)

	c.ClearAssignment()
	assert.False(t, c.IsAssigned())
	assert.Nil(t, c.TrackingCode)
	assert.Nil(t, c.Courier)
	assert.Nil(t, c.CourierCityID)
	assert.True(t, o.IsAssigned())
}

func TestShippingAddress(t *testing.T) {
	a := ShippingAddress{Name: "Rahim", Phone: "017", Street: "House 1", City: "Dhaka", District: "Dhaka", Province: "Dhaka"}
	require.NoError(t, a.Validate())
	assert.Equal(t, "House 1, Dhaka, Dhaka, Dhaka", a.OneLine())

	a.Phone = ""
	a.City = " "
	err := a.Validate()
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "phone, city")
}

func TestProviderStatusMapping(t *testing.T) {
	s, ok := ProviderStatusPickedUp.OrderStatus()
	assert.True(t, ok)
	assert.Equal(t, OrderStatusShipped, s)

	_, ok = ProviderStatusPending.OrderStatus()
	assert.False(t, ok)
}

func TestDispatchSettings(t *testing.T) {
	s := DispatchSettings{RiderDeliveryEnabled: true, EnabledPaymentMethods: []PaymentMethod{PaymentMethodCOD}}
	assert.True(t, s.DeliveryMethodEnabled(DeliveryMethodRider))
	assert.False(t, s.DeliveryMethodEnabled(DeliveryMethodExternal))
	assert.True(t, s.PaymentMethodEnabled(PaymentMethodCOD))
	assert.False(t, s.PaymentMethodEnabled(PaymentMethodKhalti))
}
