package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validSnapshot() *Snapshot {
	s := NewSnapshot()
	s.AddAccessPoint(&AccessPoint{Id: 1, WlanCapacity: 10, WanCapacity: 10})
	s.AddTask(&Task{Id: 1, UserId: 1, Ap: 1, CoresDemand: 1, MillionsOfInstructions: 10, DelayLimit: 1})

	return s
}

func TestValidateAccessPointOfVMs(t *testing.T) {
	t.Run("cloud vm without access point", func(t *testing.T) {
		s := validSnapshot()
		s.AddVM(&VM{Id: 1, Ap: -1, Type: CLOUD, Cores: 1, MillionsOfInstructions: 100})

		assert.NoError(t, s.Validate())
	})

	t.Run("edge vm on an unknown access point", func(t *testing.T) {
		s := validSnapshot()
		s.AddVM(&VM{Id: 1, Ap: -1, Type: EDGE, Cores: 1, MillionsOfInstructions: 100})

		assert.ErrorContains(t, s.Validate(), "vm 1 refers to unknown access point -1")
	})
}

func TestValidateReportsEveryProblem(t *testing.T) {
	s := validSnapshot()
	s.AddVM(&VM{Id: 1, Ap: 1, Type: "Fog"})
	s.AddTask(&Task{Id: 2, Ap: 9, MillionsOfInstructions: 0})

	err := s.Validate()
	assert.ErrorContains(t, err, "unknown type")
	assert.ErrorContains(t, err, "task 2 has no remaining workload")
	assert.ErrorContains(t, err, "task 2 refers to unknown access point 9")
}
