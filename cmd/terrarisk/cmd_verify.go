package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"terrarisk/internal/artifact"
	"terrarisk/internal/provenance"
	"terrarisk/internal/types"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <response.json>",
	Short: "Re-read a run's artifacts and check hashes and credentials",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

// release closes stores that hold connections, such as the postgres pool.
func release(store artifact.Store) {
	if c, ok := store.(io.Closer); ok {
		_ = c.Close()
	}
}

func runVerify(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	var resp types.AnalysisResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	origin, err := artifact.NewFromConfig(cmd.Context(), cfg.Artifact)
	if err != nil {
		return err
	}
	defer release(origin)
	store := artifact.NewCachedStore(origin, artifact.DefaultCacheConfig())
	validator := provenance.LoadValidator(cfg.CredentialSchemaPath)

	out := cmd.OutOrStdout()
	failed := 0
	for _, a := range resp.Artifacts {
		if err := artifact.Verify(cmd.Context(), store, resp.RunID, a); err != nil {
			failed++
			fmt.Fprintf(out, "FAIL  %s: %v\n", a.URI, err)
			continue
		}
		fmt.Fprintf(out, "ok    %s %s\n", a.Hash[:12], a.URI)
	}
	// Bundle credentials carry their artifacts; those must match too.
	for _, cred := range resp.ActionCredentials {
		for _, a := range cred.Artifacts {
			if err := artifact.Verify(cmd.Context(), store, resp.RunID, a); err != nil {
				failed++
				fmt.Fprintf(out, "FAIL  credential %s artifact %s: %v\n", cred.ID, a.URI, err)
			}
		}
		res := validator.Validate(cred)
		if !res.OK() {
			failed++
			fmt.Fprintf(out, "FAIL  credential %s: %v\n", cred.ID, res.Reasons)
		}
	}
	m := store.Metrics()
	fmt.Fprintf(out, "%d artifact(s), %d credential(s), cache hits %d misses %d\n",
		len(resp.Artifacts), len(resp.ActionCredentials), m.BlobHits, m.BlobMisses)
	if failed > 0 {
		return fmt.Errorf("%d verification failure(s)", failed)
	}
	return nil
}
