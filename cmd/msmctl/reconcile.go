package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	secretmanagerv1alpha1 "github.com/microscaler/secret-manager-controller/api/v1alpha1"
	"github.com/microscaler/secret-manager-controller/internal/controller"
)

func newReconcileCmd() *cobra.Command {
	var name, namespace string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Request an out-of-band reconcile for a SecretManagerConfig",
		Long: `reconcile sets the manual-trigger annotation on a SecretManagerConfig.

  The controller clears the annotation itself once the requested reconcile has run, the same way a human editing the resource by hand would request one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(cmd.Context(), name, namespace)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "name of the SecretManagerConfig")
	cmd.Flags().StringVar(&namespace, "namespace", "default", "namespace of the SecretManagerConfig")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func runReconcile(ctx context.Context, name, namespace string) error {
	c, err := newClient()
	if err != nil {
		return fmt.Errorf("building client: %w", err)
	}

	var smc secretmanagerv1alpha1.SecretManagerConfig
	key := types.NamespacedName{Name: name, Namespace: namespace}
	if err := c.Get(ctx, key, &smc); err != nil {
		return fmt.Errorf("getting %s: %w", key, err)
	}

	base := smc.DeepCopy()
	if smc.Annotations == nil {
		smc.Annotations = map[string]string{}
	}
	smc.Annotations[controller.AnnotationReconcile] = "true"

	if err := c.Patch(ctx, &smc, client.MergeFrom(base)); err != nil {
		return fmt.Errorf("patching %s: %w", key, err)
	}

	fmt.Printf("requested reconcile for %s\n", key)
	return nil
}
