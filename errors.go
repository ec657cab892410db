package pointgo

import (
	"errors"
	"fmt"

	"github.com/hupe1980/pointgo/engine"
	"github.com/hupe1980/pointgo/index"
	"github.com/hupe1980/pointgo/mask"
	"github.com/hupe1980/pointgo/pointcloud"
)

var (
	// ErrInvalidInput is returned for a malformed point cloud: empty,
	// mismatched column lengths, or non-finite coordinates.
	ErrInvalidInput = errors.New("pointgo: invalid input")

	// ErrInvalidArgument is returned for out-of-range k or other
	// arguments rejected before any index work begins.
	ErrInvalidArgument = errors.New("pointgo: invalid argument")

	// ErrPredicate is returned when the filter predicate cannot be
	// evaluated for some point. The run aborts; points are never
	// silently skipped.
	ErrPredicate = errors.New("pointgo: predicate evaluation failed")

	// ErrAggregation is returned when the aggregation function fails,
	// returns no output, or produces output whose shape differs from the
	// first call of the run.
	ErrAggregation = errors.New("pointgo: aggregation failed")
)

// translateError maps package-level errors onto the public taxonomy. The
// original error remains reachable via errors.Is/As.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Malformed input.
	var empty *pointcloud.ErrEmpty
	if errors.As(err, &empty) {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	var nonFinite *pointcloud.ErrNonFinite
	if errors.As(err, &nonFinite) {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	var colLen *pointcloud.ErrColumnLength
	if errors.As(err, &colLen) {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	// Argument normalization.
	if errors.Is(err, index.ErrInvalidK) || errors.Is(err, engine.ErrInvalidArgument) {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	// Run-time failures carrying the offending point index.
	var pe *mask.ErrPredicate
	if errors.As(err, &pe) {
		return fmt.Errorf("%w: %w", ErrPredicate, err)
	}
	var ae *engine.ErrAggregation
	if errors.As(err, &ae) {
		return fmt.Errorf("%w: %w", ErrAggregation, err)
	}

	return err
}
