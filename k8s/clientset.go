package k8s

import (
	"context"

	"github.com/libopenstorage/keylist"
	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// clientsetOps serves SecretOps straight from a client-go clientset, for
// callers that already hold one instead of relying on the sched-ops
// singleton. Requests carry the context of the backend call.
type clientsetOps struct {
	cs  kubernetes.Interface
	ctx context.Context
}

// NewWithClientset returns a k8s backend talking to cs.
func NewWithClientset(cs kubernetes.Interface, namespace string) keylist.Backend {
	return NewWithOps(&clientsetOps{cs: cs}, namespace)
}

func (c *clientsetOps) WithContext(ctx context.Context) SecretOps {
	return &clientsetOps{cs: c.cs, ctx: ctx}
}

func (c *clientsetOps) reqContext() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

func (c *clientsetOps) GetSecret(name string, namespace string) (*v1.Secret, error) {
	return c.cs.CoreV1().Secrets(namespace).Get(c.reqContext(), name, metav1.GetOptions{})
}

func (c *clientsetOps) CreateSecret(secret *v1.Secret) (*v1.Secret, error) {
	return c.cs.CoreV1().Secrets(secret.Namespace).Create(c.reqContext(), secret, metav1.CreateOptions{})
}

func (c *clientsetOps) UpdateSecret(secret *v1.Secret) (*v1.Secret, error) {
	return c.cs.CoreV1().Secrets(secret.Namespace).Update(c.reqContext(), secret, metav1.UpdateOptions{})
}

func (c *clientsetOps) DeleteSecret(name string, namespace string) error {
	return c.cs.CoreV1().Secrets(namespace).Delete(c.reqContext(), name, metav1.DeleteOptions{})
}
