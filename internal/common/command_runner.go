package common

import (
	"context"
	"fmt"
	"io"

	"recruitflow/internal/errors"
)

// LoadInputFunc defines how a command gathers its input.
type LoadInputFunc[Input any] func(ctx context.Context) (Input, error)

// LogDetailsFunc defines how to log the start of an operation.
type LogDetailsFunc[Input any] func(input Input, cfg CommandConfig)

// OperationFunc is the work of one command.
type OperationFunc[Input, Output any] func(context.Context, Input) (Output, error)

// RunCommand encapsulates the common logic of the CLI commands: load the
// input, run the operation and format the result.
func RunCommand[Input, Output any](
	ctx context.Context,
	logger *errors.Logger,
	stdout io.Writer,
	cmdConfig CommandConfig,
	loadInput LoadInputFunc[Input],
	operation OperationFunc[Input, Output],
	logDetails LogDetailsFunc[Input],
) error {
	input, err := loadInput(ctx)
	if err != nil {
		return fmt.Errorf("failed to load input: %w", err)
	}

	if logDetails != nil {
		logDetails(input, cmdConfig)
	}

	result, err := operation(ctx, input)
	if err != nil {
		return err
	}

	return NewOutputHandler(logger, stdout).HandleOutput(result, cmdConfig)
}
