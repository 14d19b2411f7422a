package normalize

import (
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/cryptoganster/cryptoingest/internal/domain"
)

// assetPattern pairs a symbol with the alternation that matches either the
// asset's full name or its ticker, word-boundaried and case-insensitive.
type assetPattern struct {
	symbol  string
	mention *regexp.Regexp
	ticker  *regexp.Regexp
}

func newAssetPattern(symbol, names string) assetPattern {
	return assetPattern{
		symbol:  symbol,
		mention: regexp.MustCompile(`(?i)\b(?:` + names + `|` + symbol + `)\b`),
		ticker:  regexp.MustCompile(`(?i)\b` + symbol + `\b`),
	}
}

// Major assets the detector knows about. Confidence comes from mention count,
// with a bonus when the literal ticker appears.
var assetPatterns = []assetPattern{
	newAssetPattern("BTC", `bitcoin`),
	newAssetPattern("ETH", `ethereum|ether`),
	newAssetPattern("USDT", `tether`),
	newAssetPattern("BNB", `binance\s+coin`),
	newAssetPattern("SOL", `solana`),
	newAssetPattern("XRP", `ripple`),
	newAssetPattern("ADA", `cardano`),
	newAssetPattern("DOGE", `dogecoin`),
	newAssetPattern("AVAX", `avalanche`),
	newAssetPattern("DOT", `polkadot`),
	newAssetPattern("LINK", `chainlink`),
	newAssetPattern("MATIC", `polygon`),
	newAssetPattern("LTC", `litecoin`),
	newAssetPattern("UNI", `uniswap`),
	newAssetPattern("ATOM", `cosmos`),
}

const (
	confOneMention   = 0.6
	confTwoMentions  = 0.75
	confManyMentions = 0.9
	tickerBonus      = 0.1
)

// DetectAssets scans content for mentions of major crypto assets and returns
// one tag per distinct symbol carrying the highest confidence observed.
func (s *Service) DetectAssets(content string) []domain.AssetTag {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	var tags []domain.AssetTag
	for _, ap := range assetPatterns {
		mentions := len(ap.mention.FindAllString(content, -1))
		if mentions == 0 {
			continue
		}
		confidence := mentionConfidence(mentions)
		if ap.ticker.MatchString(content) {
			confidence += tickerBonus
			if confidence > 1 {
				confidence = 1
			}
		}
		tag, err := domain.NewAssetTag(ap.symbol, confidence)
		if err != nil {
			s.logger.Warn("asset tag construction failed",
				zap.String("symbol", ap.symbol), zap.Error(err))
			continue
		}
		tags = append(tags, tag)
	}

	sort.Slice(tags, func(i, j int) bool { return tags[i].Symbol < tags[j].Symbol })
	return tags
}

func mentionConfidence(mentions int) float64 {
	switch {
	case mentions >= 3:
		return confManyMentions
	case mentions == 2:
		return confTwoMentions
	default:
		return confOneMention
	}
}
