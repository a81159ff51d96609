package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torqueline/estimator/internal/model"
)

func TestExtract_Currency(t *testing.T) {
	t.Parallel()
	ex := New(DefaultBounds())

	t.Run("bare dollar amount", func(t *testing.T) {
		t.Parallel()
		sig := ex.Extract("Duralast Gold Brake Pads - $45.99, in stock")
		require.Len(t, sig.Currency, 1)
		assert.Equal(t, 45.99, sig.Currency[0].Value)
		assert.Equal(t, model.UnitCurrency, sig.Currency[0].Unit)
		assert.Equal(t, TagPlain, sig.Currency[0].ConfidenceTag)
	})

	t.Run("labeled price with thousands separator", func(t *testing.T) {
		t.Parallel()
		sig := ex.Extract("Price: $1,299.00 at checkout")
		require.Len(t, sig.Currency, 1)
		assert.Equal(t, 1299.00, sig.Currency[0].Value)
		assert.Equal(t, TagLabeled, sig.Currency[0].ConfidenceTag)
	})

	t.Run("spelled out dollars", func(t *testing.T) {
		t.Parallel()
		sig := ex.Extract("costs around 300 dollars installed")
		require.Len(t, sig.Currency, 1)
		assert.Equal(t, 300.0, sig.Currency[0].Value)
	})

	t.Run("out of bounds amounts discarded", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, ex.Extract("$0.50 core charge").Currency)
		assert.Empty(t, ex.Extract("$9,999.00 full engine").Currency)
	})

	t.Run("boundary amounts kept", func(t *testing.T) {
		t.Parallel()
		sig := ex.Extract("$1.00 and $5,000.00")
		require.Len(t, sig.Currency, 2)
		assert.Equal(t, 1.0, sig.Currency[0].Value)
		assert.Equal(t, 5000.0, sig.Currency[1].Value)
	})

	t.Run("exact duplicates collapse", func(t *testing.T) {
		t.Parallel()
		sig := ex.Extract("$45.99 today. Was $45.99 last week.")
		assert.Len(t, sig.Currency, 1)
	})
}

func TestExtract_Hours(t *testing.T) {
	t.Parallel()
	ex := New(DefaultBounds())

	t.Run("hyphen range yields single span", func(t *testing.T) {
		t.Parallel()
		sig := ex.Extract("front brake job takes 2-4 hours")
		require.Len(t, sig.Hours, 1)
		assert.Equal(t, 3.0, sig.Hours[0].Value)
		assert.Equal(t, 2.0, sig.Hours[0].RangeLow)
		assert.Equal(t, 4.0, sig.Hours[0].RangeHigh)
		assert.Equal(t, TagRange, sig.Hours[0].ConfidenceTag)
	})

	t.Run("to range yields single span", func(t *testing.T) {
		t.Parallel()
		sig := ex.Extract("allow 2 to 4 hours for this repair")
		require.Len(t, sig.Hours, 1)
		assert.Equal(t, 3.0, sig.Hours[0].Value)
	})

	t.Run("book time without unit", func(t *testing.T) {
		t.Parallel()
		sig := ex.Extract("Book time: 1.5")
		require.Len(t, sig.Hours, 1)
		assert.Equal(t, 1.5, sig.Hours[0].Value)
		assert.Equal(t, TagLabeled, sig.Hours[0].ConfidenceTag)
	})

	t.Run("approximate phrasing matched once", func(t *testing.T) {
		t.Parallel()
		sig := ex.Extract("takes about 3 hours with hand tools")
		require.Len(t, sig.Hours, 1)
		assert.Equal(t, 3.0, sig.Hours[0].Value)
		assert.Equal(t, TagApproximate, sig.Hours[0].ConfidenceTag)
	})

	t.Run("plain single hour", func(t *testing.T) {
		t.Parallel()
		sig := ex.Extract("roughly 1 hour of labor")
		require.Len(t, sig.Hours, 1)
		assert.Equal(t, 1.0, sig.Hours[0].Value)
		assert.Equal(t, TagPlain, sig.Hours[0].ConfidenceTag)
	})

	t.Run("out of bounds durations discarded", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, ex.Extract("25 hours of machining").Hours)
		assert.Empty(t, ex.Extract("0.05 hours").Hours)
	})

	t.Run("labor bounds drop sub quarter hour", func(t *testing.T) {
		t.Parallel()
		general := New(DefaultBounds()).Extract("0.2 hours")
		labor := New(LaborBounds()).Extract("0.2 hours")
		assert.Len(t, general.Hours, 1)
		assert.Empty(t, labor.Hours)
	})
}

func TestExtract_MixedAndEmpty(t *testing.T) {
	t.Parallel()
	ex := New(DefaultBounds())

	t.Run("currency and hours in one snippet", func(t *testing.T) {
		t.Parallel()
		sig := ex.Extract("Alternator $189.99, replacement takes about 2 hours")
		assert.Len(t, sig.Currency, 1)
		assert.Len(t, sig.Hours, 1)
		assert.False(t, sig.Empty())
	})

	t.Run("no signal is empty not error", func(t *testing.T) {
		t.Parallel()
		assert.True(t, ex.Extract("genuine OEM replacement part").Empty())
		assert.True(t, ex.Extract("").Empty())
		assert.True(t, ex.Extract("   ").Empty())
	})
}

func TestSignals_Best(t *testing.T) {
	t.Parallel()
	ex := New(DefaultBounds())

	t.Run("labeled price preferred over bare", func(t *testing.T) {
		t.Parallel()
		sig := ex.Extract("was $10.00, price: $20.00")
		best, ok := sig.BestCurrency()
		require.True(t, ok)
		assert.Equal(t, 20.0, best.Value)
	})

	t.Run("book time preferred over approximate", func(t *testing.T) {
		t.Parallel()
		sig := ex.Extract("takes about 2 hours, book time: 1.8")
		best, ok := sig.BestHours()
		require.True(t, ok)
		assert.Equal(t, 1.8, best.Value)
	})

	t.Run("empty signals have no best", func(t *testing.T) {
		t.Parallel()
		_, ok := Signals{}.BestCurrency()
		assert.False(t, ok)
	})
}
