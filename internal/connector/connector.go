package connector

import (
	"fmt"

	"github.com/amsen20/lotos/internal/model"
	"github.com/amsen20/lotos/logging"
)

// Connector is where a run reads its snapshot from and leaves its results.
type Connector interface {
	LoadSnapshot() (*model.Snapshot, error)

	SaveCandidates(catalog *model.Catalog, exclusion model.ExclusionIndex) error
	LoadCandidates() (*model.Catalog, model.ExclusionIndex, error)

	// SaveModel keeps the LP form of a stage's integer program.
	SaveModel(tag string, lp string) error
	// SaveSolutions stores the assignment of every stage tag, all or none.
	SaveSolutions(solutions map[string]model.Assignment) error
	// RecordElapsed appends "<record><seconds>" to the time log of instance.
	RecordElapsed(instance string, record string, seconds float64) error
}

// InputError names the input document that could not be used.
type InputError struct {
	Document string
	Err      error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input document %s: %v", e.Document, e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// Wrapper documents, as exchanged with the external simulator.
type (
	vmsDocument struct {
		VMs map[string]*model.VM `json:"vms"`
	}

	apsDocument struct {
		AccessPoints map[string]*model.AccessPoint `json:"aps"`
		ManCapacity  *float64                      `json:"man_capacity"`
	}

	manDocument struct {
		MAN *model.MANParams `json:"man"`
	}

	tasksDocument struct {
		SimulationTime *float64               `json:"simulation_time"`
		Tasks          map[string]*model.Task `json:"tasks"`
	}

	candidatesDocument struct {
		Conf map[int]*model.CandidateConfig `json:"conf"`
	}

	exclusionDocument struct {
		Exclusion model.ExclusionIndex `json:"exclusion"`
	}

	solutionDocument struct {
		Solution map[string]string `json:"solution"`
	}
)

var log = logging.Get()
