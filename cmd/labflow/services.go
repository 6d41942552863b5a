package main

import (
	"context"
	"os"
	"strconv"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/askiada/go-labflow/pkg/pipeline"
	"github.com/askiada/go-labflow/pkg/pipeline/runner"
	"github.com/askiada/go-labflow/pkg/volume"
)

// fileStorage serves channel volumes read from disk.
type fileStorage struct {
	channels map[int]*volume.Volume
}

// newFileStorage parses "channel=path" specs.
func newFileStorage(specs []string) (*fileStorage, error) {
	st := &fileStorage{channels: make(map[int]*volume.Volume, len(specs))}

	for _, spec := range specs {
		rawChannel, path, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, errors.Errorf("invalid volume %q, expected channel=path", spec)
		}

		channel, err := strconv.Atoi(rawChannel)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid channel in %q", spec)
		}

		vol, err := readVolume(path)
		if err != nil {
			return nil, err
		}

		st.channels[channel] = vol
	}

	return st, nil
}

func readVolume(path string) (*volume.Volume, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read volume %s", path)
	}

	vol := &volume.Volume{}
	if pipeline.FormatFromPath(path) == pipeline.FormatYAML {
		err = yaml.Unmarshal(raw, vol)
	} else {
		err = json.Unmarshal(raw, vol)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "unable to decode volume %s", path)
	}

	err = vol.Validate()
	if err != nil {
		return nil, errors.Wrap(err, path)
	}

	return vol, nil
}

func (s *fileStorage) Channel(_ context.Context, channel int) (*volume.Volume, error) {
	vol, ok := s.channels[channel]
	if !ok {
		return nil, errors.Errorf("channel %d not loaded", channel)
	}

	return vol, nil
}

// simulatedWorkflow completes after a few status polls. It stands in for the instrument when none is attached.
type simulatedWorkflow struct {
	mu     sync.Mutex
	polls  int
	status runner.WorkflowStatus
}

func (w *simulatedWorkflow) Load(_ context.Context, workflowFile string) error {
	_, err := os.Stat(workflowFile)

	return errors.Wrap(err, "workflow file")
}

func (w *simulatedWorkflow) Start(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.polls = 0
	w.status = runner.WorkflowRunning

	return nil
}

func (w *simulatedWorkflow) Status(context.Context) (runner.WorkflowStatus, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.polls++
	if w.status == runner.WorkflowRunning && w.polls > 2 {
		w.status = runner.WorkflowCompleted
	}

	return w.status, nil
}

func (w *simulatedWorkflow) Stop(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.status = runner.WorkflowStopped

	return nil
}

var (
	_ runner.VoxelStorage   = (*fileStorage)(nil)
	_ runner.WorkflowFacade = (*simulatedWorkflow)(nil)
)
