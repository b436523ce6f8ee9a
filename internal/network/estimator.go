package network

import (
	"errors"
	"fmt"

	"github.com/amsen20/lotos/internal/model"
)

// ErrSaturated means a link cannot carry the load: the bandwidth lookup is
// out of range or the MAN queue is unstable.
var ErrSaturated = errors.New("link is saturated")

func transferBits(task *model.Task) float64 {
	return task.UploadSize*BitsPerByte + task.DownloadSize*BitsPerByte
}

// WLANTime is the wireless transfer time of a task when users distinct
// users share its access point.
func WLANTime(task *model.Task, users int) (float64, error) {
	bandwidth := WLANBandwidth(users)
	if bandwidth <= 0 {
		return 0, fmt.Errorf("wlan of ap %d with %d users: %w", task.Ap, users, ErrSaturated)
	}

	return transferBits(task) / (bandwidth * WLANDivisor), nil
}

func WANTime(task *model.Task, users int) (float64, error) {
	bandwidth := WANBandwidth(users)
	if bandwidth <= 0 {
		return 0, fmt.Errorf("wan of ap %d with %d users: %w", task.Ap, users, ErrSaturated)
	}

	return transferBits(task)/bandwidth + WANPropagationDelay, nil
}

// queueDelay is the M/M/1 sojourn time of one MAN direction.
func queueDelay(avgSize, poissonMean, bandwidth, devices float64) (float64, error) {
	if avgSize <= 0 || poissonMean <= 0 {
		return 0, fmt.Errorf("man parameters are not positive: %w", ErrSaturated)
	}

	lambda := 1 / poissonMean
	mu := bandwidth / (avgSize * BitsPerByte)
	denominator := mu - lambda*devices
	if denominator <= 0 {
		return 0, fmt.Errorf("man queue is unstable (mu %f, load %f): %w", mu, lambda*devices, ErrSaturated)
	}

	return 1 / denominator, nil
}

// MANTime is the download plus upload queueing delay of the metro network
// plus the propagation delay in both directions.
func MANTime(params model.MANParams) (float64, error) {
	download, err := queueDelay(params.AvgDownload, params.PoissonDl, params.Bandwidth, params.DevCount)
	if err != nil {
		return 0, err
	}

	upload, err := queueDelay(params.AvgUpload, params.PoissonUl, params.Bandwidth, params.DevCount)
	if err != nil {
		return 0, err
	}

	return download + upload + 2*MANPropagationDelay, nil
}

// CommunicationTime routes the task: an edge VM on the task's access point
// is reached over WLAN, an edge VM elsewhere over WLAN and MAN, and a cloud
// VM over WAN. wlanUsers and wanUsers are the per access point usage counts
// of the configuration being evaluated.
func CommunicationTime(vm *model.VM, task *model.Task, wlanUsers, wanUsers map[int]int, params model.MANParams) (float64, error) {
	switch vm.Type {
	case model.CLOUD:
		return WANTime(task, wanUsers[task.Ap])

	case model.EDGE:
		wlan, err := WLANTime(task, wlanUsers[task.Ap])
		if err != nil {
			return 0, err
		}
		if task.Ap == vm.Ap {
			return wlan, nil
		}

		man, err := MANTime(params)
		if err != nil {
			return 0, err
		}

		return wlan + man, nil
	}

	return 0, fmt.Errorf("unknown vm type %q", vm.Type)
}
