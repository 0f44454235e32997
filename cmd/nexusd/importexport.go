package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nexusdb/nexus/internal/xconfig"
	"github.com/nexusdb/nexus/pkg/kv"
)

// fullKeyspaceEnd is the exclusive upper bound a scan over the entire
// keyspace uses, following pkg/keys.RangeOf's own convention of a
// trailing run of 0xFF bytes no real encoded key can reach — long
// enough that no namespace/database/table/record key this module ever
// encodes could compare greater than it.
var fullKeyspaceEnd = make([]byte, 512)

func init() {
	for i := range fullKeyspaceEnd {
		fullKeyspaceEnd[i] = 0xFF
	}
}

// dumpLine is one key/value pair of a full-keyspace export, base64
// since KV keys/values are arbitrary binary (spec §3.5's encoded key
// layout, not text).
type dumpLine struct {
	Key   string `json:"k"`
	Value string `json:"v"`
}

const exportScanBatch = 1024

func exportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "dump every key/value pair to a newline-delimited JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), out)
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output file path (required)")
	return cmd
}

func importCmd() *cobra.Command {
	var in string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "load a file produced by export into the configured storage backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), in)
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "input file path (required)")
	return cmd
}

func runExport(ctx context.Context, out string) error {
	if out == "" {
		return fmt.Errorf("nexusd export: --out is required")
	}
	cfg, err := xconfig.Load(configPath)
	if err != nil {
		return err
	}
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	tx, err := store.Begin(ctx, kv.ReadOnly)
	if err != nil {
		return err
	}
	defer tx.Cancel()

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)

	cursor := []byte(nil)
	total := 0
	for {
		batch, err := tx.Scan(kv.Range{End: fullKeyspaceEnd}, exportScanBatch, cursor)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			break
		}
		for _, kvPair := range batch {
			if err := enc.Encode(dumpLine{
				Key:   base64.StdEncoding.EncodeToString(kvPair.Key),
				Value: base64.StdEncoding.EncodeToString(kvPair.Value),
			}); err != nil {
				return err
			}
			cursor = kvPair.Key
			total++
		}
		if len(batch) < exportScanBatch {
			break
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "nexusd export: wrote %d entries to %s\n", total, out)
	return nil
}

func runImport(ctx context.Context, in string) error {
	if in == "" {
		return fmt.Errorf("nexusd import: --in is required")
	}
	cfg, err := xconfig.Load(configPath)
	if err != nil {
		return err
	}
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	f, err := os.Open(in)
	if err != nil {
		return err
	}
	defer f.Close()

	tx, err := store.Begin(ctx, kv.ReadWrite)
	if err != nil {
		return err
	}

	dec := json.NewDecoder(bufio.NewReader(f))
	total := 0
	for dec.More() {
		var line dumpLine
		if err := dec.Decode(&line); err != nil {
			tx.Cancel()
			return err
		}
		key, err := base64.StdEncoding.DecodeString(line.Key)
		if err != nil {
			tx.Cancel()
			return err
		}
		value, err := base64.StdEncoding.DecodeString(line.Value)
		if err != nil {
			tx.Cancel()
			return err
		}
		if err := tx.Set(key, value); err != nil {
			tx.Cancel()
			return err
		}
		total++
	}
	if _, err := tx.Commit(ctx); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "nexusd import: loaded %d entries from %s\n", total, in)
	return nil
}
