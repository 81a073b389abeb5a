package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/pkl/core/attendance"
	"github.com/trezcool/pkl/core/clock"
)

func (cli *commandLine) sweep(date string) error {
	var day clock.Date
	if date != "" {
		var err error
		if day, err = clock.ParseDate(date); err != nil {
			return errors.Wrap(err, "parsing -date")
		}
	}

	res, err := cli.sweeper.Run(context.Background(), day)
	if err != nil {
		if errors.Cause(err) == attendance.ErrPrematureSweep {
			fmt.Fprintln(cli.out, err.Error())
			return nil
		}
		return err
	}

	fmt.Fprintf(cli.out, "date=%s processed=%d skipped=%d failed=%d\n", res.Date, res.Processed, res.Skipped, res.Failed())
	for _, f := range res.Failures {
		fmt.Fprintf(cli.out, "  %s: %s\n", f.StudentID, f.Error)
	}
	return nil
}
