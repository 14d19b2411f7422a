package normalize

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cryptoganster/cryptoingest/internal/domain"
)

func tagFor(tags []domain.AssetTag, symbol string) (domain.AssetTag, bool) {
	for _, tag := range tags {
		if tag.Symbol == symbol {
			return tag, true
		}
	}
	return domain.AssetTag{}, false
}

func TestDetectAssetsBasicScenario(t *testing.T) {
	t.Parallel()

	svc := NewService(nil)
	tags := svc.DetectAssets("Bitcoin (BTC) and Ethereum (ETH) lead the market.")
	require.Len(t, tags, 2)

	btc, ok := tagFor(tags, "BTC")
	require.True(t, ok)
	require.GreaterOrEqual(t, btc.Confidence, 0.0)
	require.LessOrEqual(t, btc.Confidence, 1.0)

	eth, ok := tagFor(tags, "ETH")
	require.True(t, ok)
	require.GreaterOrEqual(t, eth.Confidence, 0.0)
	require.LessOrEqual(t, eth.Confidence, 1.0)
}

func TestDetectAssetsConfidenceScaling(t *testing.T) {
	t.Parallel()

	svc := NewService(nil)

	t.Run("single name mention", func(t *testing.T) {
		t.Parallel()
		tags := svc.DetectAssets("Solana had a strong week.")
		sol, ok := tagFor(tags, "SOL")
		require.True(t, ok)
		require.InDelta(t, 0.6, sol.Confidence, 1e-9)
	})

	t.Run("two mentions", func(t *testing.T) {
		t.Parallel()
		tags := svc.DetectAssets("Solana dipped, then Solana recovered.")
		sol, ok := tagFor(tags, "SOL")
		require.True(t, ok)
		require.InDelta(t, 0.75, sol.Confidence, 1e-9)
	})

	t.Run("three mentions with ticker bonus", func(t *testing.T) {
		t.Parallel()
		tags := svc.DetectAssets("Bitcoin rose. Bitcoin fell. BTC closed flat.")
		btc, ok := tagFor(tags, "BTC")
		require.True(t, ok)
		require.InDelta(t, 1.0, btc.Confidence, 1e-9)
	})

	t.Run("ticker bonus on single mention", func(t *testing.T) {
		t.Parallel()
		tags := svc.DetectAssets("ADA volume spiked overnight.")
		ada, ok := tagFor(tags, "ADA")
		require.True(t, ok)
		require.InDelta(t, 0.7, ada.Confidence, 1e-9)
	})
}

func TestDetectAssetsNoFalsePositives(t *testing.T) {
	t.Parallel()

	svc := NewService(nil)
	require.Empty(t, svc.DetectAssets("The weather in Lisbon is lovely this time of year."))
	require.Empty(t, svc.DetectAssets("   "))
	// "tether" must not match inside other words, and "ether" must not match
	// inside "tether".
	tags := svc.DetectAssets("He tethered the boat to the dock.")
	_, hasUSDT := tagFor(tags, "USDT")
	require.False(t, hasUSDT)
	_, hasETH := tagFor(tags, "ETH")
	require.False(t, hasETH)
}

func TestDetectAssetsOneTagPerSymbol(t *testing.T) {
	t.Parallel()

	svc := NewService(nil)
	tags := svc.DetectAssets("bitcoin BITCOIN Bitcoin btc BTC")
	require.Len(t, tags, 1)
	require.Equal(t, "BTC", tags[0].Symbol)
}
