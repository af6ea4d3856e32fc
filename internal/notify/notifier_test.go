package notify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"position_engine/internal/models"
)

func TestFormatPositions(t *testing.T) {
	sol := models.PositionRecord{
		Symbol:       "SOL-USDT-SWAP",
		Direction:    models.DirectionLong,
		EntryPrice:   100,
		Size:         7.5,
		OriginalSize: 10,
		ProfitsTaken: models.ProfitsTaken{models.Level1R: true, models.Level2R: false},
	}
	sol.SetStop(100)
	xrp := models.PositionRecord{
		Symbol:       "XRP-USDT-SWAP",
		Direction:    models.DirectionShort,
		EntryPrice:   0.5,
		Size:         100,
		OriginalSize: 100,
	}

	out := FormatPositions([]models.PositionRecord{xrp, sol})
	assert.Contains(t, out, "- SOL-USDT-SWAP [LONG] size=7.5/10 @ 100 stop=100 taken=1R trail=false")
	assert.Contains(t, out, "- XRP-USDT-SWAP [SHORT] size=100/100 @ 0.5 stop=— taken= trail=false")
	assert.Less(t, strings.Index(out, "SOL"), strings.Index(out, "XRP"))
}

func TestNilTelegramIsSilent(t *testing.T) {
	var tg *Telegram
	assert.NotPanics(t, func() {
		tg.Send("x")
		tg.Attach(nil, nil)
		tg.Stop()
	})
}

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Sendf("kill switch at %.0f", 5000.0)
	assert.Equal(t, []string{"kill switch at 5000"}, r.Messages())
}
