package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBulk(t *testing.T) {
	input := "WebApp_Login | User login system\n" +
		"\n" +
		"MobileApp_Payment|Mobile payment app\n" +
		"API_UserService\n" +
		"   | orphan description\n" +
		"Report | has | pipes\r\n"

	assert.Equal(t, []Application{
		{Name: "WebApp_Login", Description: "User login system"},
		{Name: "MobileApp_Payment", Description: "Mobile payment app"},
		{Name: "API_UserService", Description: ""},
		{Name: "Report", Description: "has | pipes"},
	}, ParseBulk(input))

	assert.Empty(t, ParseBulk("   \n\n"))
}

func TestBulkRegister(t *testing.T) {
	r := newTestRegistry(t, &memStore{})

	results := r.BulkRegister(context.Background(), []Application{
		{Name: "A", Description: "first"},
		{Name: " ", Description: "blank"},
		{Name: "C"},
	})
	require.Len(t, results, 3)

	assert.True(t, results[0].Success)
	assert.True(t, InRange(results[0].Number))

	assert.False(t, results[1].Success)
	assert.Zero(t, results[1].Number)
	assert.Equal(t, ErrEmptyName.Error(), results[1].Error)

	assert.True(t, results[2].Success)
	assert.NotEqual(t, results[0].Number, results[2].Number)

	assert.Equal(t, 2, r.Statistics().UsedCount)
}

func TestBulkRegisterCancelled(t *testing.T) {
	r := newTestRegistry(t, &memStore{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := r.BulkRegister(ctx, []Application{{Name: "A"}, {Name: "B"}})
	require.Len(t, results, 2)
	for _, res := range results {
		assert.False(t, res.Success)
		assert.Equal(t, context.Canceled.Error(), res.Error)
	}
	assert.Zero(t, r.Statistics().UsedCount)
}
