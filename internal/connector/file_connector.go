package connector

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/amsen20/lotos/internal/config"
	"github.com/amsen20/lotos/internal/model"
)

// FileConnector keeps every document as a JSON file: inputs and generated
// candidates in the input directory, solutions, models and time logs in the
// output directory. Documents are replaced atomically.
type FileConnector struct {
	inputDir  string
	outputDir string

	// Guards the append only time logs.
	mutex sync.Mutex
}

func NewFileConnector(inputDir, outputDir string) (*FileConnector, error) {
	for _, dir := range []string{inputDir, outputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Err(err).Send()

			return nil, fmt.Errorf("could not create directory %s: %w", dir, err)
		}
	}

	return &FileConnector{
		inputDir:  inputDir,
		outputDir: outputDir,
	}, nil
}

func (fc *FileConnector) readDocument(name string, v interface{}) error {
	content, err := os.ReadFile(filepath.Join(fc.inputDir, name))
	if err != nil {
		return &InputError{Document: name, Err: err}
	}

	if err := json.Unmarshal(content, v); err != nil {
		return &InputError{Document: name, Err: err}
	}

	return nil
}

func missing(document, key string) error {
	return &InputError{Document: document, Err: fmt.Errorf("missing %q", key)}
}

func (fc *FileConnector) LoadSnapshot() (*model.Snapshot, error) {
	var vms vmsDocument
	if err := fc.readDocument(config.VMsFile, &vms); err != nil {
		return nil, err
	}
	if vms.VMs == nil {
		return nil, missing(config.VMsFile, "vms")
	}

	var aps apsDocument
	if err := fc.readDocument(config.APsFile, &aps); err != nil {
		return nil, err
	}
	if aps.AccessPoints == nil {
		return nil, missing(config.APsFile, "aps")
	}
	if aps.ManCapacity == nil {
		return nil, missing(config.APsFile, "man_capacity")
	}

	var man manDocument
	if err := fc.readDocument(config.MANFile, &man); err != nil {
		return nil, err
	}
	if man.MAN == nil {
		return nil, missing(config.MANFile, "man")
	}

	var tasks tasksDocument
	if err := fc.readDocument(config.TasksFile, &tasks); err != nil {
		return nil, err
	}
	if tasks.Tasks == nil {
		return nil, missing(config.TasksFile, "tasks")
	}
	if tasks.SimulationTime == nil {
		return nil, missing(config.TasksFile, "simulation_time")
	}

	snapshot := &model.Snapshot{
		VMs:            vms.VMs,
		AccessPoints:   aps.AccessPoints,
		ManCapacity:    *aps.ManCapacity,
		MAN:            *man.MAN,
		Tasks:          tasks.Tasks,
		SimulationTime: *tasks.SimulationTime,
	}
	if err := snapshot.Validate(); err != nil {
		return nil, &InputError{Document: "snapshot", Err: err}
	}

	log.Info().Int("tasks", len(snapshot.Tasks)).Int("vms", len(snapshot.VMs)).Msg("snapshot loaded")

	return snapshot, nil
}

func (fc *FileConnector) SaveCandidates(catalog *model.Catalog, exclusion model.ExclusionIndex) error {
	conf := candidatesDocument{Conf: make(map[int]*model.CandidateConfig, catalog.Len())}
	for _, candidate := range catalog.Configs() {
		conf.Conf[candidate.Id] = candidate
	}

	if err := writeDocument(filepath.Join(fc.inputDir, config.CandidatesFile), conf); err != nil {
		return err
	}

	return writeDocument(filepath.Join(fc.inputDir, config.ExclusionFile), exclusionDocument{Exclusion: exclusion})
}

func (fc *FileConnector) LoadCandidates() (*model.Catalog, model.ExclusionIndex, error) {
	var conf candidatesDocument
	if err := fc.readDocument(config.CandidatesFile, &conf); err != nil {
		return nil, nil, err
	}
	if conf.Conf == nil {
		return nil, nil, missing(config.CandidatesFile, "conf")
	}

	ids := make([]int, 0, len(conf.Conf))
	for id := range conf.Conf {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	catalog := model.NewCatalog()
	for _, id := range ids {
		candidate := conf.Conf[id]
		if candidate == nil || candidate.Id != id {
			return nil, nil, &InputError{Document: config.CandidatesFile, Err: fmt.Errorf("config %d is stored under another id", id)}
		}
		if err := catalog.Add(candidate); err != nil {
			return nil, nil, &InputError{Document: config.CandidatesFile, Err: err}
		}
	}

	var exclusion exclusionDocument
	if err := fc.readDocument(config.ExclusionFile, &exclusion); err != nil {
		return nil, nil, err
	}
	if exclusion.Exclusion == nil {
		return nil, nil, missing(config.ExclusionFile, "exclusion")
	}

	return catalog, exclusion.Exclusion, nil
}

func (fc *FileConnector) SaveModel(tag string, lp string) error {
	path := filepath.Join(fc.outputDir, "model_"+strings.ToLower(tag)+".lp")

	return writeAtomically(path, []byte(lp))
}

func (fc *FileConnector) SaveSolutions(solutions map[string]model.Assignment) error {
	documents := make(map[string][]byte, len(solutions))
	for tag, assignment := range solutions {
		solution := solutionDocument{Solution: make(map[string]string, len(assignment))}
		for taskId, vmId := range assignment {
			solution.Solution[strconv.Itoa(taskId)] = strconv.Itoa(vmId)
		}

		path := filepath.Join(fc.outputDir, tag+config.SolutionSuffix)
		content, err := encode(path, solution)
		if err != nil {
			return err
		}
		documents[path] = content
	}

	return writeAllAtomically(documents)
}

func (fc *FileConnector) RecordElapsed(instance string, record string, seconds float64) error {
	fc.mutex.Lock()
	defer fc.mutex.Unlock()

	path := filepath.Join(fc.outputDir, instance+config.TimeLogSuffix)
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("could not open time log %s: %w", path, err)
	}

	_, err = file.WriteString(record + strconv.FormatFloat(seconds, 'f', -1, 64) + "\n")

	return errors.Join(err, file.Close())
}

func encode(path string, document interface{}) ([]byte, error) {
	content, err := json.MarshalIndent(document, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("could not encode %s: %w", filepath.Base(path), err)
	}

	return content, nil
}

func writeDocument(path string, document interface{}) error {
	content, err := encode(path, document)
	if err != nil {
		return err
	}

	return writeAtomically(path, content)
}

// writeAtomically never leaves a partially written document at path.
func writeAtomically(path string, content []byte) error {
	return writeAllAtomically(map[string][]byte{path: content})
}

// stage writes content next to path under a hidden temporary name.
func stage(path string, content []byte) (string, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return "", fmt.Errorf("could not write %s: %w", path, err)
	}

	_, err = tmp.Write(content)
	if err = errors.Join(err, tmp.Close()); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("could not write %s: %w", path, err)
	}

	return tmp.Name(), nil
}

// writeAllAtomically stages every document before moving any of them into
// place. When a move fails, the documents already moved are removed again,
// so either all of them are written or none.
func writeAllAtomically(documents map[string][]byte) error {
	paths := make([]string, 0, len(documents))
	for path := range documents {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	staged := make([]string, 0, len(paths))
	discard := func(from int) {
		for _, tmp := range staged[from:] {
			os.Remove(tmp)
		}
	}

	for _, path := range paths {
		tmp, err := stage(path, documents[path])
		if err != nil {
			discard(0)
			return err
		}
		staged = append(staged, tmp)
	}

	for i, path := range paths {
		if err := os.Rename(staged[i], path); err != nil {
			discard(i)
			for _, written := range paths[:i] {
				os.Remove(written)
			}

			return fmt.Errorf("could not write %s: %w", path, err)
		}
	}

	return nil
}
