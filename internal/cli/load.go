package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"homescore/internal/errs"
	"homescore/internal/events"
	"homescore/internal/model"
	"homescore/internal/repository"
)

const maxLine = 4 << 20

// readListings decodes one listing per line and normalises provider status
// spellings. Blank lines are skipped.
func readListings(r io.Reader) ([]model.Listing, error) {
	var out []model.Listing
	err := eachLine(r, func(n int, line []byte) error {
		var l model.Listing
		if err := json.Unmarshal(line, &l); err != nil {
			return errors.Wrapf(err, "line %d", n)
		}
		raw := string(l.Status)
		if l.Status = model.ParseStatus(raw); l.Status == model.StatusUnknown {
			return errors.Newf("line %d: listing %s has unknown status %q", n, l.ID, raw)
		}
		if l.ID == "" {
			return errors.Newf("line %d: listing without id", n)
		}
		out = append(out, l)
		return nil
	})
	return out, err
}

// readInteractions decodes one interaction event per line.
func readInteractions(r io.Reader) ([]model.Interaction, error) {
	var out []model.Interaction
	err := eachLine(r, func(n int, line []byte) error {
		it, err := events.Decode(line)
		if err != nil {
			return errors.Wrapf(err, "line %d", n)
		}
		out = append(out, it)
		return nil
	})
	return out, err
}

func eachLine(r io.Reader, fn func(n int, line []byte) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLine)
	n := 0
	for sc.Scan() {
		n++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := fn(n, line); err != nil {
			return err
		}
	}
	return sc.Err()
}

// seed writes the listings and interactions files, when given, through w.
func seed(ctx context.Context, w repository.Writer, listingsPath, interactionsPath string) error {
	if listingsPath != "" {
		ls, err := readFile(listingsPath, readListings)
		if err != nil {
			return err
		}
		for _, l := range ls {
			if err := w.SaveListing(ctx, l); err != nil {
				return errors.Wrapf(err, "save listing %s", l.ID)
			}
		}
	}
	if interactionsPath != "" {
		its, err := readFile(interactionsPath, readInteractions)
		if err != nil {
			return err
		}
		for _, it := range its {
			if err := w.AppendInteraction(ctx, it); err != nil {
				return errors.Wrapf(err, "append interaction for %s", it.ClientID)
			}
		}
	}
	return nil
}

func readFile[T any](path string, read func(io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	out, err := read(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return out, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// explain turns the typed engine failures into messages an operator can act
// on. Other errors pass through.
func explain(err error) error {
	var ice *errs.InsufficientComparablesError
	if errors.As(err, &ice) {
		return errors.Newf("only %d comparable sales found for %s, need %d: widen --radius or --days",
			ice.Found, ice.SubjectID, ice.Required)
	}
	var mfe *errs.MissingFeatureDataError
	if errors.As(err, &mfe) {
		return errors.Newf("listing %s has no %s on record; fix the listing data and retry", mfe.ListingID, mfe.Field)
	}
	var nfe *errs.NotFoundError
	if errors.As(err, &nfe) {
		return errors.Newf("no %s with id %s", nfe.Kind, nfe.ID)
	}
	return err
}
