package serverconfig

import (
	"fmt"
	"time"

	"ocisaccept/internal/config"
	"ocisaccept/internal/wrapper"
)

const defaultRolloutTimeout = 3 * time.Minute

// New returns the Reconfigurer selected by cfg. The wrapper client is used
// for the wrapper backend and ignored otherwise.
func New(cfg config.Config, w *wrapper.Client) (Reconfigurer, error) {
	switch cfg.Reconfigure.Backend {
	case config.BackendWrapper, "":
		if w == nil {
			return nil, fmt.Errorf("wrapper backend selected but no wrapper client configured")
		}
		return w, nil
	case config.BackendKubernetes:
		clientset, err := NewKubernetesClientset(cfg.Reconfigure.Kubernetes)
		if err != nil {
			return nil, err
		}
		k := NewKubernetesReconfigurer(clientset, cfg.Reconfigure.Kubernetes)
		k.RolloutTimeout = defaultRolloutTimeout
		return k, nil
	default:
		return nil, fmt.Errorf("unknown reconfigure backend %q", cfg.Reconfigure.Backend)
	}
}
