package feed

import (
	"bufio"
	"context"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"simtrade/internal/schema"
	"simtrade/pkg/exception"
)

const defaultUpdateTime = "bt"

var halfSpread = decimal.RequireFromString("0.5")

// CSVSource replays ticks from a text file, one tick per line.
//
// Two layouts are accepted:
//
//	instrument,last,volume[,bid,ask,time]
//	instrument,datetime,last,bid,ask,bid_volume,ask_volume,volume
//
// The long layout is picked when a line has at least eight columns and the
// second one looks like a timestamp. Blank lines, header lines, unsubscribed
// instruments and unparsable lines are skipped.
type CSVSource struct {
	path       string
	subscribed map[string]struct{}
	speed      time.Duration
	clock      Clock
}

// NewCSVSource creates a replay of path restricted to instruments (all when empty),
// sleeping speed after every emitted tick.
func NewCSVSource(path string, instruments []string, speed time.Duration) *CSVSource {
	return &CSVSource{
		path:       path,
		subscribed: subscription(instruments),
		speed:      speed,
		clock:      realClock{},
	}
}

// WithClock swaps the pacing clock.
func (s *CSVSource) WithClock(clock Clock) *CSVSource {
	if clock != nil {
		s.clock = clock
	}
	return s
}

func (s *CSVSource) Run(ctx context.Context, emit schema.TickHandler) error {
	file, err := os.Open(s.path)
	if err != nil {
		return errors.Wrapf(exception.ErrFeedSourceOpen, "%s: %v", s.path, err)
	}
	defer file.Close()

	sc := bufio.NewScanner(file)
	var lineNo, skipped int
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || isHeader(line) {
			continue
		}
		tick, err := parseLine(line)
		if err != nil {
			skipped++
			logs.Warnf("[Feed] skip %s:%d, err: %+v", s.path, lineNo, err)
			continue
		}
		if !s.accepts(tick.Instrument) {
			continue
		}
		emit(tick)
		if err := s.clock.Sleep(ctx, s.speed); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", s.path)
	}
	logs.Infof("[Feed] replay of %s done, lines=%d skipped=%d", s.path, lineNo, skipped)
	return nil
}

func (s *CSVSource) accepts(instr string) bool {
	if s.subscribed == nil {
		return true
	}
	_, ok := s.subscribed[instr]
	return ok
}

func isHeader(line string) bool {
	return strings.Contains(line, ",") && strings.Contains(strings.ToLower(line), "instrument")
}

func parseLine(line string) (schema.Tick, error) {
	cols := strings.Split(line, ",")
	for i := range cols {
		cols[i] = strings.TrimSpace(cols[i])
	}
	if len(cols) < 3 || cols[0] == "" {
		return schema.Tick{}, errors.Wrapf(exception.ErrFeedMalformedLine, "%d columns", len(cols))
	}
	if len(cols) >= 8 && strings.ContainsAny(cols[1], "-:T") {
		return parseLong(cols)
	}
	return parseShort(cols)
}

func parseLong(cols []string) (schema.Tick, error) {
	last, err := decimal.NewFromString(cols[2])
	if err != nil {
		return schema.Tick{}, errors.Wrapf(exception.ErrFeedMalformedLine, "last %q", cols[2])
	}
	bid, err := decimal.NewFromString(cols[3])
	if err != nil {
		return schema.Tick{}, errors.Wrapf(exception.ErrFeedMalformedLine, "bid %q", cols[3])
	}
	ask, err := decimal.NewFromString(cols[4])
	if err != nil {
		return schema.Tick{}, errors.Wrapf(exception.ErrFeedMalformedLine, "ask %q", cols[4])
	}
	var vols [3]int64
	for i := range vols {
		v, err := parseVolume(cols[5+i])
		if err != nil {
			return schema.Tick{}, err
		}
		vols[i] = v
	}
	return schema.Tick{
		Instrument: cols[0],
		LastPrice:  last,
		BidPrice:   bid,
		BidVolume:  vols[0],
		AskPrice:   ask,
		AskVolume:  vols[1],
		Volume:     vols[2],
		UpdateTime: cols[1],
	}, nil
}

// parseShort reads the short layout. It carries no depth, so the traded volume
// of the row stands in for the size on both sides.
func parseShort(cols []string) (schema.Tick, error) {
	last, err := decimal.NewFromString(cols[1])
	if err != nil {
		return schema.Tick{}, errors.Wrapf(exception.ErrFeedMalformedLine, "last %q", cols[1])
	}
	volume, err := parseVolume(cols[2])
	if err != nil {
		return schema.Tick{}, err
	}
	tick := schema.Tick{
		Instrument: cols[0],
		LastPrice:  last,
		BidPrice:   last.Sub(halfSpread),
		BidVolume:  volume,
		AskPrice:   last.Add(halfSpread),
		AskVolume:  volume,
		Volume:     volume,
		UpdateTime: defaultUpdateTime,
	}
	if len(cols) > 3 {
		if bid, err := decimal.NewFromString(cols[3]); err == nil {
			tick.BidPrice = bid
		}
	}
	if len(cols) > 4 {
		if ask, err := decimal.NewFromString(cols[4]); err == nil {
			tick.AskPrice = ask
		}
	}
	if len(cols) > 5 && cols[5] != "" {
		tick.UpdateTime = cols[5]
	}
	return tick, nil
}

func parseVolume(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, errors.Wrapf(exception.ErrFeedMalformedLine, "volume %q", s)
	}
	return d.IntPart(), nil
}
