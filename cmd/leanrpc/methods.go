package main

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strconv"

	"lean-rpc/dispatcher"
	"lean-rpc/fault"
	"lean-rpc/message"
	"lean-rpc/value"
)

// demoMethods registers the methods served by "leanrpc serve".
//
//	add(n...)   sum of numbers; an Integer when every operand is one
//	echo(v...)  the single parameter, or all of them as an array
//	log(v...)   logs its parameters; meant to be sent as a notification
//	methods()   the registered method names
func demoMethods(d *dispatcher.Dispatcher, logger *slog.Logger) error {
	if err := d.Register("add", add); err != nil {
		return err
	}
	if err := d.Register("echo", echo); err != nil {
		return err
	}
	if err := d.Register("log", func(ctx context.Context, params message.Params) (value.Value, error) {
		attrs := make([]any, 0, len(params))
		for i, p := range params {
			attrs = append(attrs, slog.String("arg"+strconv.Itoa(i), p.String()))
		}
		logger.InfoContext(ctx, "log", attrs...)
		return value.NewNull(), nil
	}); err != nil {
		return err
	}
	return d.Register("methods", func(ctx context.Context, params message.Params) (value.Value, error) {
		names := d.Methods()
		sort.Strings(names)
		elems := make([]value.Value, len(names))
		for i, n := range names {
			elems[i] = value.NewString(n)
		}
		return value.NewArray(elems...), nil
	})
}

func add(ctx context.Context, params message.Params) (value.Value, error) {
	var isum int64
	var fsum float64
	integral := true
	for i, p := range params {
		if n, ok := p.AsInt(); ok && integral {
			if (n > 0 && isum > math.MaxInt64-n) || (n < 0 && isum < math.MinInt64-n) {
				return value.Value{}, fault.Newf(fault.CodeInvalidParams, "sum overflows at param %d", i)
			}
			isum += n
			fsum += float64(n)
			continue
		}
		f, ok := p.AsNumber()
		if !ok {
			return value.Value{}, fault.Newf(fault.CodeInvalidParams, "param %d: want a number, got %s", i, p.Kind())
		}
		integral = false
		fsum += f
	}
	if integral {
		return value.NewInt(isum), nil
	}
	return value.NewFloat(fsum), nil
}

func echo(ctx context.Context, params message.Params) (value.Value, error) {
	if len(params) == 1 {
		return params[0], nil
	}
	return value.NewArray(params...), nil
}
