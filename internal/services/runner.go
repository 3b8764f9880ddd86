package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cogland/parcelsync/internal/repository"
)

// RunOptions selects what a sync run does. Exactly one of the three modes
// must be chosen: a single parcel, per-parcel iteration over municipality
// feeds, or an absence diff over municipality feeds. The mode is never
// inferred from which optional values happen to be set.
type RunOptions struct {
	// ParcelID reconciles one parcel (single-parcel mode).
	ParcelID string
	// EachParcel reconciles every record of each selected municipality.
	EachParcel bool
	// Diff reconciles absences for each selected municipality.
	Diff bool
	// Municode restricts the municipality modes to one municipality;
	// nil means every municipality in the store.
	Municode *int
	// Commit persists the run. When false the run executes against the live
	// store but is rolled back at the end (dry-run).
	Commit bool
}

// Validate checks the mode contract.
func (o RunOptions) Validate() error {
	modes := 0
	if o.ParcelID != "" {
		modes++
	}
	if o.EachParcel {
		modes++
	}
	if o.Diff {
		modes++
	}
	if modes != 1 {
		return fmt.Errorf("%w: %d modes requested", ErrInvalidInvocation, modes)
	}
	return nil
}

// Summary is the run-level report. It is returned for every run that got
// past option validation, including runs where some parcels or
// municipalities failed.
type Summary struct {
	Success   bool   `json:"success"`
	Committed bool   `json:"committed"`
	Tally     Tally  `json:"tally"`
	Elapsed   string `json:"elapsed"`
}

// Run executes one sync run. All writes happen inside a single run-level
// transaction; each parcel additionally runs inside a nested transaction so
// its failure rolls back only its own writes. The outer transaction commits
// only when opts.Commit is set.
//
// A non-nil error is returned only for failures that abort the run: invalid
// invocation, transaction management failures, and store corruption
// (duplicate parcel rows). Per-parcel and per-municipality failures are
// counted in the summary instead.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (Summary, error) {
	start := time.Now()
	summary := Summary{}

	if err := opts.Validate(); err != nil {
		return summary, err
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return summary, err
	}

	runErr := e.run(ctx, tx, opts, &summary.Tally)

	if runErr == nil && opts.Commit {
		if err := tx.Commit(ctx); err != nil {
			runErr = fmt.Errorf("failed to commit run: %w", err)
		} else {
			summary.Committed = true
		}
	} else {
		// Dry-run or aborted run; either way nothing may remain visible.
		if err := tx.Rollback(ctx); err != nil && runErr == nil {
			runErr = fmt.Errorf("failed to roll back run: %w", err)
		}
	}

	summary.Success = runErr == nil
	summary.Elapsed = time.Since(start).Truncate(time.Millisecond).String()

	e.log.Info("Sync run finished", map[string]interface{}{
		"success":        summary.Success,
		"committed":      summary.Committed,
		"processed":      summary.Tally.Processed,
		"created":        summary.Tally.Created,
		"changed":        summary.Tally.Changed,
		"orphans":        summary.Tally.Orphans,
		"municipalities": summary.Tally.Municipalities,
		"errors":         summary.Tally.Errors,
		"elapsed":        summary.Elapsed,
	})
	return summary, runErr
}

func (e *Engine) run(ctx context.Context, tx repository.Tx, opts RunOptions, tally *Tally) error {
	if opts.ParcelID != "" {
		return e.runParcel(ctx, tx, opts.ParcelID, tally)
	}

	municodes, err := e.selectMunicipalities(ctx, tx, opts.Municode)
	if err != nil {
		return err
	}

	for _, municode := range municodes {
		if err := e.runMunicipality(ctx, tx, municode, opts, tally); err != nil {
			return err
		}
	}
	return nil
}

// runParcel reconciles a single parcel inside its own nested transaction.
func (e *Engine) runParcel(ctx context.Context, tx repository.Tx, parcelID string, tally *Tally) error {
	scoped := Tally{Processed: 1}
	err := e.inNestedTx(ctx, tx, func(nested repository.Tx) error {
		result, err := e.reconcileParcel(ctx, nested, parcelRequest{parcelID: parcelID})
		if err != nil {
			return err
		}
		if result.created {
			scoped.Created = 1
		}
		if result.changed {
			scoped.Changed = 1
		}
		return nil
	})
	if err != nil {
		if isFatal(err) {
			return err
		}
		e.log.Error("Failed to reconcile parcel", err, map[string]interface{}{
			"parcel_id": parcelID,
		})
		scoped = Tally{Processed: 1, Errors: 1}
	}
	tally.Merge(scoped)
	return nil
}

// runMunicipality processes one municipality's feed in the selected mode.
// Failures here are counted, not propagated, unless they are fatal: one
// municipality failing never stops the next.
func (e *Engine) runMunicipality(ctx context.Context, tx repository.Tx, municode int, opts RunOptions, tally *Tally) error {
	muni, err := tx.MunicipalityByCode(ctx, municode)
	if err != nil {
		return err
	}
	if muni == nil {
		return fmt.Errorf("municipality %d does not exist in the store", municode)
	}

	records, err := e.feed.FetchRecords(ctx, municode)
	if err != nil {
		e.log.Error("Failed to fetch municipality feed", err, map[string]interface{}{
			"municode": municode,
			"name":     muni.Name,
		})
		tally.Errors++
		return nil
	}
	if len(records) == 0 {
		// Valid: the municipality has no open parcels in the feed.
		e.log.Info("Skipping municipality with empty feed", map[string]interface{}{
			"municode": municode,
			"name":     muni.Name,
		})
		return nil
	}

	scoped := Tally{}

	if opts.EachParcel {
		for i := range records {
			record := &records[i]
			scoped.Processed++
			err := e.inNestedTx(ctx, tx, func(nested repository.Tx) error {
				result, err := e.reconcileParcel(ctx, nested, parcelRequest{record: record})
				if err != nil {
					return err
				}
				if result.created {
					scoped.Created++
				}
				if result.changed {
					scoped.Changed++
				}
				return nil
			})
			if err != nil {
				if isFatal(err) {
					return err
				}
				e.log.Error("Failed to reconcile parcel", err, map[string]interface{}{
					"parcel_id": record.ParcelID,
					"municode":  municode,
				})
				scoped.Errors++
			}
		}
	}

	if opts.Diff {
		err := e.inNestedTx(ctx, tx, func(nested repository.Tx) error {
			orphans, err := e.reconcileAbsences(ctx, nested, municode, records)
			if err != nil {
				return err
			}
			scoped.Orphans += orphans
			return nil
		})
		if err != nil {
			if isFatal(err) {
				return err
			}
			e.log.Error("Failed to reconcile absences", err, map[string]interface{}{
				"municode": municode,
			})
			scoped.Errors++
		}
	}

	scoped.Municipalities = 1
	tally.Merge(scoped)
	return nil
}

// selectMunicipalities resolves which municipalities a run covers: the one
// explicitly requested, or every municipality in the store.
func (e *Engine) selectMunicipalities(ctx context.Context, tx repository.Tx, municode *int) ([]int, error) {
	if municode != nil {
		return []int{*municode}, nil
	}
	munis, err := tx.Municipalities(ctx)
	if err != nil {
		return nil, err
	}
	codes := make([]int, 0, len(munis))
	for _, muni := range munis {
		codes = append(codes, muni.Code)
	}
	return codes, nil
}

// inNestedTx runs fn inside a nested transaction (savepoint), rolling it
// back on failure so the enclosing run transaction stays usable.
func (e *Engine) inNestedTx(ctx context.Context, tx repository.Tx, fn func(repository.Tx) error) error {
	nested, err := tx.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(nested); err != nil {
		_ = nested.Rollback(ctx)
		return err
	}
	return nested.Commit(ctx)
}

// isFatal reports whether an error must abort the whole run rather than
// just the parcel that produced it.
func isFatal(err error) bool {
	var duplicate *repository.DuplicateParcelError
	return errors.As(err, &duplicate) || errors.Is(err, ErrInvalidInvocation)
}
