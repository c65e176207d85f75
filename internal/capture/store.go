package capture

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dgnsrekt/gex-analytics/internal/data"
	"github.com/dgnsrekt/gex-analytics/internal/quant"
)

// AppendSnapshot writes snap as one JSON line at the end of path. The line
// is fully encoded before the file is touched so readers never see a
// partial record.
func AppendSnapshot(path string, snap *data.Snapshot) error {
	line, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	line = append(line, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("creating directories: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		return fmt.Errorf("opening snapshot file: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return f.Close()
}

// LastSnapshot returns the final record in path, or nil when the file does
// not exist or is empty.
func LastSnapshot(path string) (*data.Snapshot, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	var last []byte
	for {
		line, err := reader.ReadBytes('\n')
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			last = trimmed
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	}
	if last == nil {
		return nil, nil
	}

	var snap data.Snapshot
	if err := json.Unmarshal(last, &snap); err != nil {
		return nil, fmt.Errorf("decoding last snapshot: %w", err)
	}
	return &snap, nil
}

// NetGammaByExpiration returns each expiration's net gamma exposure at the
// snapshot's own spot price.
func NetGammaByExpiration(snap *data.Snapshot) map[string]float64 {
	spot := snap.Quote.Spot()
	if spot <= 0 {
		return nil
	}
	out := make(map[string]float64, len(snap.Chains))
	for exp, contracts := range snap.Chains {
		aggs := quant.Aggregate(contracts, spot)
		if len(aggs) == 0 {
			continue
		}
		out[exp] = aggs.Totals().NetGamma()
	}
	return out
}
