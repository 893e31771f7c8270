package serverconfig

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"ocisaccept/internal/config"
	"ocisaccept/pkg/logging"
)

// NewK8sClientsetFromConfig turns a loaded rest.Config into a clientset.
// Tests replace it to avoid talking to an API server.
var NewK8sClientsetFromConfig = func(c *rest.Config) (kubernetes.Interface, error) {
	return kubernetes.NewForConfig(c)
}

// NewKubernetesClientset builds a clientset for the kubeconfig and context
// named in target, falling back to the default loading rules.
func NewKubernetesClientset(target config.KubernetesTarget) (kubernetes.Interface, error) {
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if target.Kubeconfig != "" {
		loadingRules.ExplicitPath = target.Kubeconfig
	}
	overrides := &clientcmd.ConfigOverrides{CurrentContext: target.Context}

	restConfig, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
	}
	return NewK8sClientsetFromConfig(restConfig)
}

// KubernetesReconfigurer changes the environment of the oCIS container in
// a Deployment. The container env found before the first change is kept
// and written back on Rollback.
type KubernetesReconfigurer struct {
	client kubernetes.Interface
	target config.KubernetesTarget

	// RolloutTimeout bounds the wait for the new pods. Zero skips waiting.
	RolloutTimeout time.Duration
	PollInterval   time.Duration

	mu       sync.Mutex
	original []corev1.EnvVar
	saved    bool
}

// NewKubernetesReconfigurer creates a reconfigurer for target.
func NewKubernetesReconfigurer(client kubernetes.Interface, target config.KubernetesTarget) *KubernetesReconfigurer {
	return &KubernetesReconfigurer{
		client:       client,
		target:       target,
		PollInterval: 2 * time.Second,
	}
}

// Reconfigure sets env on the container, replacing variables of the same
// name, and waits for the rollout.
func (k *KubernetesReconfigurer) Reconfigure(ctx context.Context, env map[string]string) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	deployment, container, err := k.load(ctx)
	if err != nil {
		return statusFor(err), err
	}

	if !k.saved {
		k.original = append([]corev1.EnvVar(nil), container.Env...)
		k.saved = true
	}
	container.Env = mergeEnv(container.Env, env)

	logging.Info(subsystem, "Setting %d variables on deployment %s/%s", len(env), k.target.Namespace, k.target.Deployment)
	if err := k.update(ctx, deployment); err != nil {
		return statusFor(err), err
	}
	return http.StatusOK, nil
}

// Rollback restores the env captured before the first Reconfigure. It is
// a no-op when nothing was changed.
func (k *KubernetesReconfigurer) Rollback(ctx context.Context) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.saved {
		return http.StatusOK, nil
	}

	deployment, container, err := k.load(ctx)
	if err != nil {
		return statusFor(err), err
	}
	container.Env = append([]corev1.EnvVar(nil), k.original...)

	if err := k.update(ctx, deployment); err != nil {
		return statusFor(err), err
	}
	k.original = nil
	k.saved = false
	return http.StatusOK, nil
}

func (k *KubernetesReconfigurer) load(ctx context.Context) (*appsv1.Deployment, *corev1.Container, error) {
	deployment, err := k.client.AppsV1().Deployments(k.target.Namespace).Get(ctx, k.target.Deployment, metav1.GetOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get deployment %s/%s: %w", k.target.Namespace, k.target.Deployment, err)
	}

	containers := deployment.Spec.Template.Spec.Containers
	if len(containers) == 0 {
		return nil, nil, fmt.Errorf("deployment %s/%s has no containers", k.target.Namespace, k.target.Deployment)
	}
	if k.target.Container == "" {
		return deployment, &containers[0], nil
	}
	for i := range containers {
		if containers[i].Name == k.target.Container {
			return deployment, &containers[i], nil
		}
	}
	return nil, nil, fmt.Errorf("container %q not found in deployment %s/%s", k.target.Container, k.target.Namespace, k.target.Deployment)
}

func (k *KubernetesReconfigurer) update(ctx context.Context, deployment *appsv1.Deployment) error {
	updated, err := k.client.AppsV1().Deployments(k.target.Namespace).Update(ctx, deployment, metav1.UpdateOptions{})
	if err != nil {
		return fmt.Errorf("failed to update deployment %s/%s: %w", k.target.Namespace, k.target.Deployment, err)
	}
	if k.RolloutTimeout <= 0 {
		return nil
	}
	return k.waitForRollout(ctx, updated.Generation)
}

func (k *KubernetesReconfigurer) waitForRollout(ctx context.Context, generation int64) error {
	err := wait.PollUntilContextTimeout(ctx, k.PollInterval, k.RolloutTimeout, true, func(ctx context.Context) (bool, error) {
		d, err := k.client.AppsV1().Deployments(k.target.Namespace).Get(ctx, k.target.Deployment, metav1.GetOptions{})
		if err != nil {
			return false, err
		}
		return rolledOut(d, generation), nil
	})
	if err != nil {
		return fmt.Errorf("deployment %s/%s did not roll out: %w", k.target.Namespace, k.target.Deployment, err)
	}
	return nil
}

func rolledOut(d *appsv1.Deployment, generation int64) bool {
	if d.Status.ObservedGeneration < generation {
		return false
	}
	want := int32(1)
	if d.Spec.Replicas != nil {
		want = *d.Spec.Replicas
	}
	return d.Status.UpdatedReplicas == want && d.Status.AvailableReplicas == want
}

// mergeEnv overwrites variables already present and appends the rest in
// name order, so repeated runs produce the same pod template.
func mergeEnv(current []corev1.EnvVar, env map[string]string) []corev1.EnvVar {
	merged := append([]corev1.EnvVar(nil), current...)
	seen := make(map[string]bool, len(env))
	for i := range merged {
		if v, ok := env[merged[i].Name]; ok {
			merged[i].Value = v
			merged[i].ValueFrom = nil
			seen[merged[i].Name] = true
		}
	}

	names := make([]string, 0, len(env))
	for name := range env {
		if !seen[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		merged = append(merged, corev1.EnvVar{Name: name, Value: env[name]})
	}
	return merged
}
