package instrument

import (
	"encoding/json"
	"os"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"simtrade/pkg/exception"
)

// metaEntry mirrors one element of the meta JSON array:
//
//	[{"instrument":"IF2401","tick_size":0.2,"contract_multiplier":300,"slippage_tick":0.5}]
type metaEntry struct {
	Instrument         string           `json:"instrument"`
	TickSize           *decimal.Decimal `json:"tick_size"`
	ContractMultiplier *decimal.Decimal `json:"contract_multiplier"`
	SlippageTick       *decimal.Decimal `json:"slippage_tick"`
}

// rulesFile mirrors the rules JSON object: {"slippage_tick":1,"partial_fill":true}.
type rulesFile struct {
	SlippageTick *decimal.Decimal `json:"slippage_tick"`
	PartialFill  *bool            `json:"partial_fill"`
}

// LoadMeta reads the meta file into the catalog and returns the number of accepted entries.
// Entries that cannot be decoded are skipped; missing fields keep their defaults.
func LoadMeta(c *Catalog, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.Wrapf(exception.ErrConfigRead, "meta %s: %v", path, err)
	}
	return DecodeMeta(c, data)
}

// DecodeMeta decodes a meta JSON array into the catalog.
func DecodeMeta(c *Catalog, data []byte) (int, error) {
	var raws []json.RawMessage
	if err := sonic.Unmarshal(data, &raws); err != nil {
		return 0, errors.Wrapf(exception.ErrConfigDecode, "meta: %v", err)
	}

	accepted := 0
	for i, raw := range raws {
		var entry metaEntry
		if err := sonic.Unmarshal(raw, &entry); err != nil {
			logs.Warnf("skip meta entry %d, err: %+v", i, err)
			continue
		}
		if entry.Instrument == "" {
			logs.Warnf("skip meta entry %d: empty instrument", i)
			continue
		}
		m := Meta{}
		if entry.TickSize != nil {
			m.TickSize = *entry.TickSize
		}
		if entry.ContractMultiplier != nil {
			m.ContractMultiplier = entry.ContractMultiplier.IntPart()
		}
		if entry.SlippageTick != nil {
			m.SlippageTicks = *entry.SlippageTick
		}
		c.Set(entry.Instrument, m)
		accepted++
	}
	return accepted, nil
}

// LoadRules reads the rules file into the catalog.
func LoadRules(c *Catalog, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(exception.ErrConfigRead, "rules %s: %v", path, err)
	}
	return DecodeRules(c, data)
}

// DecodeRules decodes a rules JSON object into the catalog. Missing keys keep defaults.
func DecodeRules(c *Catalog, data []byte) error {
	var f rulesFile
	if err := sonic.Unmarshal(data, &f); err != nil {
		return errors.Wrapf(exception.ErrConfigDecode, "rules: %v", err)
	}
	r := DefaultRules()
	if f.SlippageTick != nil {
		r.GlobalSlippageTicks = *f.SlippageTick
	}
	if f.PartialFill != nil {
		r.PartialFillEnabled = *f.PartialFill
	}
	c.SetRules(r)
	return nil
}

// Configure loads meta and rules, logging failures and keeping defaults. Empty paths are skipped.
func Configure(c *Catalog, metaPath, rulesPath string) {
	if metaPath != "" {
		n, err := LoadMeta(c, metaPath)
		if err != nil {
			logs.Warnf("load instrument meta, use defaults, err: %+v", err)
		} else {
			logs.Infof("loaded %d instrument meta entries from %s", n, metaPath)
		}
	}
	if rulesPath != "" {
		if err := LoadRules(c, rulesPath); err != nil {
			logs.Warnf("load matching rules, use defaults, err: %+v", err)
		} else {
			logs.Infof("loaded matching rules from %s", rulesPath)
		}
	}
}
