package connector

import (
	"errors"
	"strconv"
	"sync"

	"github.com/amsen20/lotos/internal/model"
)

// This connector keeps everything
// in memory, it serves a snapshot that
// was handed over and records the outputs.
type ConstantConnector struct {
	snapshot *model.Snapshot

	catalog   *model.Catalog
	exclusion model.ExclusionIndex

	Models    map[string]string
	Solutions map[string]model.Assignment
	Elapsed   map[string][]string

	mutex sync.Mutex
}

func NewConstantConnector(snapshot *model.Snapshot) *ConstantConnector {
	return &ConstantConnector{
		snapshot:  snapshot,
		Models:    make(map[string]string),
		Solutions: make(map[string]model.Assignment),
		Elapsed:   make(map[string][]string),
	}
}

func (c *ConstantConnector) LoadSnapshot() (*model.Snapshot, error) {
	if c.snapshot == nil {
		return nil, &InputError{Document: "snapshot", Err: errors.New("no snapshot was given")}
	}
	if err := c.snapshot.Validate(); err != nil {
		return nil, &InputError{Document: "snapshot", Err: err}
	}

	return c.snapshot, nil
}

func (c *ConstantConnector) SaveCandidates(catalog *model.Catalog, exclusion model.ExclusionIndex) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.catalog = catalog
	c.exclusion = exclusion

	return nil
}

func (c *ConstantConnector) LoadCandidates() (*model.Catalog, model.ExclusionIndex, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.catalog == nil {
		return nil, nil, &InputError{Document: "candidates", Err: errors.New("no candidates were saved")}
	}

	return c.catalog, c.exclusion, nil
}

func (c *ConstantConnector) SaveModel(tag string, lp string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.Models[tag] = lp

	return nil
}

func (c *ConstantConnector) SaveSolutions(solutions map[string]model.Assignment) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for tag, assignment := range solutions {
		c.Solutions[tag] = assignment
	}

	return nil
}

func (c *ConstantConnector) RecordElapsed(instance string, record string, seconds float64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.Elapsed[instance] = append(c.Elapsed[instance], record+strconv.FormatFloat(seconds, 'f', -1, 64))

	return nil
}
