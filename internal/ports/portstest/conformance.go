// Package portstest holds the behaviour every ports.Adapter must show,
// runnable against any implementation.
package portstest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billtrack/internal/core"
	"billtrack/internal/notify"
	"billtrack/internal/ports"
)

// Harness builds a fresh, disconnected adapter together with a config that
// connects it and the recorder receiving its notices.
type Harness func(t *testing.T) (ports.Adapter, ports.ConnectionConfig, *notify.Recorder)

// Draft returns a valid draft for tests.
func Draft(name string, amount int64, due string) core.Draft {
	d, _ := core.ParseDate(due)
	return core.Draft{
		Name:     name,
		Amount:   decimal.NewFromInt(amount),
		DueDate:  d,
		Category: core.CategoryElectricity,
	}
}

// Run executes the adapter contract against h.
func Run(t *testing.T, h Harness) {
	t.Run("starts disconnected", func(t *testing.T) {
		a, _, rec := h(t)
		ctx := context.Background()

		require.Equal(t, ports.Disconnected, a.State())
		assert.Empty(t, a.GetAllBills(ctx))
		last, ok := rec.Last()
		require.True(t, ok)
		assert.Equal(t, notify.LevelError, last.Level)

		_, err := a.AddBill(ctx, Draft("x", 1, "2024-01-01"))
		assert.ErrorIs(t, err, ports.ErrNotConnected)
		_, err = a.UpdateBill(ctx, "1", core.StatusPatch(core.StatusPaid))
		assert.ErrorIs(t, err, ports.ErrNotConnected)
		_, err = a.DeleteBill(ctx, "1")
		assert.ErrorIs(t, err, ports.ErrNotConnected)
		_, err = a.ExportBills(ctx, nil)
		assert.ErrorIs(t, err, ports.ErrNotConnected)
	})

	t.Run("connect with empty config fails", func(t *testing.T) {
		a, _, rec := h(t)
		ctx := context.Background()
		assert.False(t, a.Connect(ctx, ports.ConnectionConfig{}))
		assert.Equal(t, ports.Disconnected, a.State())
		last, ok := rec.Last()
		require.True(t, ok)
		assert.Equal(t, notify.LevelError, last.Level)

		_, err := a.AddBill(ctx, Draft("x", 1, "2024-01-01"))
		assert.ErrorIs(t, err, ports.ErrNotConnected)
	})

	t.Run("connect is idempotent", func(t *testing.T) {
		a, cfg, rec := h(t)
		ctx := context.Background()
		require.True(t, a.Connect(ctx, cfg))
		require.Equal(t, ports.Connected, a.State())
		last, _ := rec.Last()
		assert.Equal(t, notify.LevelSuccess, last.Level)

		assert.True(t, a.Connect(ctx, ports.ConnectionConfig{}))
		assert.Equal(t, ports.Connected, a.State())
	})

	t.Run("add then list", func(t *testing.T) {
		a, cfg, _ := h(t)
		ctx := context.Background()
		require.True(t, a.Connect(ctx, cfg))
		before := len(a.GetAllBills(ctx))

		b, err := a.AddBill(ctx, Draft("Electricity", 1250, "2024-01-20"))
		require.NoError(t, err)
		assert.NotEmpty(t, b.ID)
		assert.Equal(t, core.StatusPending, b.Status)
		assert.Equal(t, b.CreatedAt, b.UpdatedAt)

		all := a.GetAllBills(ctx)
		require.Len(t, all, before+1)
		got := find(all, b.ID)
		require.NotNil(t, got)
		assert.Equal(t, "Electricity", got.Name)
		assert.True(t, got.Amount.Equal(decimal.NewFromInt(1250)))
		assert.Equal(t, "2024-01-20", got.DueDate.String())
	})

	t.Run("add rejects invalid draft", func(t *testing.T) {
		a, cfg, _ := h(t)
		ctx := context.Background()
		require.True(t, a.Connect(ctx, cfg))
		before := len(a.GetAllBills(ctx))

		_, err := a.AddBill(ctx, Draft("", 10, "2024-01-20"))
		assert.ErrorIs(t, err, core.ErrEmptyName)
		_, err = a.AddBill(ctx, Draft("x", 0, "2024-01-20"))
		assert.ErrorIs(t, err, core.ErrInvalidAmount)
		assert.Len(t, a.GetAllBills(ctx), before)
	})

	t.Run("update keeps absent fields", func(t *testing.T) {
		a, cfg, _ := h(t)
		ctx := context.Background()
		require.True(t, a.Connect(ctx, cfg))
		b, err := a.AddBill(ctx, Draft("Phone", 599, "2024-01-28"))
		require.NoError(t, err)

		time.Sleep(time.Millisecond)
		u, err := a.UpdateBill(ctx, b.ID, core.StatusPatch(core.StatusPaid))
		require.NoError(t, err)
		assert.Equal(t, core.StatusPaid, u.Status)
		assert.Equal(t, b.Name, u.Name)
		assert.True(t, u.UpdatedAt.After(b.UpdatedAt))

		got := find(a.GetAllBills(ctx), b.ID)
		require.NotNil(t, got)
		assert.Equal(t, core.StatusPaid, got.Status)
		assert.Equal(t, "2024-01-28", got.DueDate.String())

		_, err = a.UpdateBill(ctx, "missing", core.StatusPatch(core.StatusPaid))
		assert.ErrorIs(t, err, ports.ErrBillNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		a, cfg, rec := h(t)
		ctx := context.Background()
		require.True(t, a.Connect(ctx, cfg))
		b, err := a.AddBill(ctx, Draft("Water", 450, "2024-01-22"))
		require.NoError(t, err)
		before := len(a.GetAllBills(ctx))

		ok, err := a.DeleteBill(ctx, b.ID)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Len(t, a.GetAllBills(ctx), before-1)
		assert.Nil(t, find(a.GetAllBills(ctx), b.ID))

		ok, err = a.DeleteBill(ctx, b.ID)
		require.NoError(t, err)
		assert.False(t, ok)
		last, _ := rec.Last()
		assert.Equal(t, notify.LevelError, last.Level)
	})

	t.Run("export replaces content", func(t *testing.T) {
		a, cfg, rec := h(t)
		ctx := context.Background()
		require.True(t, a.Connect(ctx, cfg))
		_, err := a.AddBill(ctx, Draft("Old", 1, "2024-01-01"))
		require.NoError(t, err)

		now := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
		local := []core.Bill{
			Draft("Loan", 35000, "2024-01-25").NewBill("1700000000001", now),
			Draft("Card", 5200, "2024-01-18").NewBill("1700000000002", now),
		}
		ok, err := a.ExportBills(ctx, local)
		require.NoError(t, err)
		require.True(t, ok)
		last, _ := rec.Last()
		assert.Equal(t, "Exported 2 bills to "+a.Kind().DisplayName()+"!", last.Message)

		all := a.GetAllBills(ctx)
		require.Len(t, all, 2)
		names := []string{all[0].Name, all[1].Name}
		assert.ElementsMatch(t, []string{"Loan", "Card"}, names)

		ok, err = a.ExportBills(ctx, nil)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Empty(t, a.GetAllBills(ctx))
	})
}

func find(bills []core.Bill, id string) *core.Bill {
	for i := range bills {
		if bills[i].ID == id {
			return &bills[i]
		}
	}
	return nil
}
