package fn

import (
	"context"
	"time"

	"github.com/nexusdb/nexus/internal/xerrors"
	"github.com/nexusdb/nexus/pkg/val"
)

func registerTime(r *Registry) {
	r.Register("time::now", fnTimeNow)
	r.Register("time::floor", fnTimeFloor)
	r.Register("time::round", fnTimeRound)
	r.Register("time::unix", fnTimeUnix)
	r.Register("time::year", fnTimePart(func(t time.Time) int64 { return int64(t.Year()) }))
	r.Register("time::month", fnTimePart(func(t time.Time) int64 { return int64(t.Month()) }))
	r.Register("time::day", fnTimePart(func(t time.Time) int64 { return int64(t.Day()) }))
	r.Register("time::hour", fnTimePart(func(t time.Time) int64 { return int64(t.Hour()) }))
	r.Register("time::minute", fnTimePart(func(t time.Time) int64 { return int64(t.Minute()) }))
	r.Register("time::second", fnTimePart(func(t time.Time) int64 { return int64(t.Second()) }))

	r.Register("duration::secs", fnDurationUnit(time.Second))
	r.Register("duration::mins", fnDurationUnit(time.Minute))
	r.Register("duration::hours", fnDurationUnit(time.Hour))
	r.Register("duration::days", fnDurationUnit(24*time.Hour))
	r.Register("duration::from::secs", fnDurationFromUnit(time.Second))
	r.Register("duration::from::mins", fnDurationFromUnit(time.Minute))
	r.Register("duration::from::hours", fnDurationFromUnit(time.Hour))
}

// timeNow lets a test override the wall clock; it defaults to time.Now
// and production callers never reassign it.
var timeNow = time.Now

func fnTimeNow(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("time::now", args, 0, 0); err != nil {
		return nil, err
	}
	return val.DatetimeV(timeNow().UTC()), nil
}

func fnTimeFloor(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("time::floor", args, 2, 2); err != nil {
		return nil, err
	}
	t, d, err := datetimeAndDuration("time::floor", args)
	if err != nil {
		return nil, err
	}
	return val.DatetimeV(t.Truncate(d)), nil
}

func fnTimeRound(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("time::round", args, 2, 2); err != nil {
		return nil, err
	}
	t, d, err := datetimeAndDuration("time::round", args)
	if err != nil {
		return nil, err
	}
	return val.DatetimeV(t.Round(d)), nil
}

func fnTimeUnix(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("time::unix", args, 1, 1); err != nil {
		return nil, err
	}
	dt, ok := args[0].(val.DatetimeV)
	if !ok {
		return nil, xerrors.New(xerrors.KindTypeMismatch, "fn: time::unix expects a datetime argument")
	}
	return val.Int(time.Time(dt).Unix()), nil
}

func fnTimePart(extract func(time.Time) int64) Fn {
	return func(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
		if err := arity("time::part", args, 1, 1); err != nil {
			return nil, err
		}
		dt, ok := args[0].(val.DatetimeV)
		if !ok {
			return nil, xerrors.New(xerrors.KindTypeMismatch, "fn: expects a datetime argument")
		}
		return val.Int(extract(time.Time(dt))), nil
	}
}

func datetimeAndDuration(name string, args []val.Value) (time.Time, time.Duration, error) {
	dt, ok := args[0].(val.DatetimeV)
	if !ok {
		return time.Time{}, 0, xerrors.New(xerrors.KindTypeMismatch, "fn: "+name+" expects a datetime argument")
	}
	d, ok := args[1].(val.DurationV)
	if !ok {
		return time.Time{}, 0, xerrors.New(xerrors.KindTypeMismatch, "fn: "+name+" expects a duration argument")
	}
	return time.Time(dt), time.Duration(d), nil
}

func fnDurationUnit(unit time.Duration) Fn {
	return func(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
		if err := arity("duration::unit", args, 1, 1); err != nil {
			return nil, err
		}
		d, ok := args[0].(val.DurationV)
		if !ok {
			return nil, xerrors.New(xerrors.KindTypeMismatch, "fn: expects a duration argument")
		}
		return val.Int(int64(time.Duration(d) / unit)), nil
	}
}

func fnDurationFromUnit(unit time.Duration) Fn {
	return func(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
		if err := arity("duration::from", args, 1, 1); err != nil {
			return nil, err
		}
		n, err := asInt("duration::from", args[0])
		if err != nil {
			return nil, err
		}
		return val.DurationV(time.Duration(n) * unit), nil
	}
}
