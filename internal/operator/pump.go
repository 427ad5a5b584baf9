// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package operator

import (
	"context"
	"errors"
	"io"
	"log"

	"github.com/relabs-tech/balance_recorder/internal/session"
)

// Submitter applies commands. *session.Controller satisfies it.
type Submitter interface {
	Submit(ctx context.Context, cmd session.Command) (session.Status, error)
}

// Pump forwards commands from src to the controller until src is exhausted,
// ctx is done, the controller shuts down, or an exit command is applied.
// report receives unrecognized input; everything the controller rejects is
// already published to its observers.
func Pump(ctx context.Context, src Source, ctrl Submitter, report func(error)) error {
	for {
		cmd, err := src.Next(ctx)
		if err != nil {
			var unknown *UnknownCommandError
			if errors.As(err, &unknown) {
				report(err)
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		_, err = ctrl.Submit(ctx, cmd)
		switch {
		case errors.Is(err, session.ErrShutdown):
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			var perr *session.ProtocolError
			if !errors.As(err, &perr) && !errors.Is(err, session.ErrNoSample) {
				log.Printf("operator: %s failed: %v", cmd, err)
			}
		}

		if cmd.Kind == session.CmdExit {
			return nil
		}
	}
}
