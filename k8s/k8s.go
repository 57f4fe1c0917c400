package k8s

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/libopenstorage/keylist"
	"github.com/portworx/sched-ops/k8s/core"
	v1 "k8s.io/api/core/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	// Name of the backend
	Name = "k8s"
	// NamespaceKey is the config key (and env var) for the namespace holding
	// the secrets.
	NamespaceKey = "KEYLIST_K8S_NAMESPACE"
	// DefaultNamespace is used when NamespaceKey is not set.
	DefaultNamespace = "default"
	// ManagedByLabel marks the secrets created by this backend.
	ManagedByLabel = "app.kubernetes.io/managed-by"
	managedByValue = "keylist"
	maxNameLength  = 253
)

var (
	ErrInvalidSecretName = errors.New("service does not map to a valid Kubernetes secret name")
)

// SecretOps is the subset of core.Ops used by the backend.
type SecretOps interface {
	GetSecret(name string, namespace string) (*v1.Secret, error)
	CreateSecret(secret *v1.Secret) (*v1.Secret, error)
	UpdateSecret(secret *v1.Secret) (*v1.Secret, error)
	DeleteSecret(name string, namespace string) error
}

// contextOps is implemented by SecretOps that can bind the caller's context
// to their requests. core.Ops takes no context, so the sched-ops client
// does not see cancellation.
type contextOps interface {
	WithContext(ctx context.Context) SecretOps
}

type k8sBackend struct {
	ops       SecretOps
	namespace string
}

// New returns a backend keeping all accounts of a service as data keys of one
// Kubernetes secret named after the service.
func New(
	config map[string]interface{},
) (keylist.Backend, error) {
	return NewWithOps(core.Instance(), getNamespace(config)), nil
}

// NewWithOps returns a k8s backend using ops for all API calls.
func NewWithOps(ops SecretOps, namespace string) keylist.Backend {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &k8sBackend{
		ops:       ops,
		namespace: namespace,
	}
}

func (s *k8sBackend) String() string {
	return Name
}

func (s *k8sBackend) opsFor(ctx context.Context) SecretOps {
	if c, ok := s.ops.(contextOps); ok {
		return c.WithContext(ctx)
	}
	return s.ops
}

func (s *k8sBackend) Get(ctx context.Context, id keylist.Identity) ([]byte, error) {
	name, key, err := secretRef(id)
	if err != nil {
		return nil, err
	}
	ops := s.opsFor(ctx)
	secret, err := ops.GetSecret(name, s.namespace)
	if k8serrors.IsNotFound(err) {
		return nil, keylist.ErrNotFound
	} else if err != nil {
		return nil, statusError(err)
	}
	blob, exists := secret.Data[key]
	if !exists {
		return nil, keylist.ErrNotFound
	}
	return blob, nil
}

// Put updates the data key in place. The update carries the resourceVersion
// of Put's own read, so it only guards the window between that read and the
// update. Writers in other processes can still overwrite each other's records.
func (s *k8sBackend) Put(ctx context.Context, id keylist.Identity, blob []byte) error {
	name, key, err := secretRef(id)
	if err != nil {
		return err
	}
	ops := s.opsFor(ctx)
	secret, err := ops.GetSecret(name, s.namespace)
	if k8serrors.IsNotFound(err) {
		_, err = ops.CreateSecret(&v1.Secret{
			ObjectMeta: metav1.ObjectMeta{
				Name:      name,
				Namespace: s.namespace,
				Labels:    map[string]string{ManagedByLabel: managedByValue},
			},
			Type: v1.SecretTypeOpaque,
			Data: map[string][]byte{key: blob},
		})
		return statusError(err)
	} else if err != nil {
		return statusError(err)
	}
	if secret.Data == nil {
		secret.Data = make(map[string][]byte)
	}
	secret.Data[key] = blob
	_, err = ops.UpdateSecret(secret)
	return statusError(err)
}

// Delete drops the data key, and the secret with it once no key is left.
func (s *k8sBackend) Delete(ctx context.Context, id keylist.Identity) error {
	name, key, err := secretRef(id)
	if err != nil {
		return err
	}
	ops := s.opsFor(ctx)
	secret, err := ops.GetSecret(name, s.namespace)
	if k8serrors.IsNotFound(err) {
		return nil
	} else if err != nil {
		return statusError(err)
	}
	if _, exists := secret.Data[key]; !exists {
		return nil
	}
	delete(secret.Data, key)
	if len(secret.Data) == 0 && len(secret.StringData) == 0 {
		err = ops.DeleteSecret(name, s.namespace)
		if k8serrors.IsNotFound(err) {
			return nil
		}
		return statusError(err)
	}
	_, err = ops.UpdateSecret(secret)
	return statusError(err)
}

// secretRef maps id to a secret name (a DNS-1123 subdomain) and a data key.
func secretRef(id keylist.Identity) (string, string, error) {
	name := strings.Trim(strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		}
		return '-'
	}, id.Service), "-.")
	if len(name) > maxNameLength {
		name = strings.Trim(name[:maxNameLength], "-.")
	}
	if name == "" {
		return "", "", ErrInvalidSecretName
	}
	key := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '.', r == '_':
			return r
		}
		return '_'
	}, id.Account)
	return name, key, nil
}

func statusError(err error) error {
	var status k8serrors.APIStatus
	if errors.As(err, &status) {
		return keylist.NewStatusError(status.Status().Code, err)
	}
	return err
}

func getNamespace(config map[string]interface{}) string {
	if ns, ok := config[NamespaceKey].(string); ok && ns != "" {
		return ns
	}
	if ns := os.Getenv(NamespaceKey); ns != "" {
		return ns
	}
	return DefaultNamespace
}

func init() {
	if err := keylist.Register(Name, New); err != nil {
		panic(err.Error())
	}
}
