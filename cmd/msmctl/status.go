package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/types"

	secretmanagerv1alpha1 "github.com/microscaler/secret-manager-controller/api/v1alpha1"
)

func newStatusCmd() *cobra.Command {
	var name, namespace string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the detailed status of a SecretManagerConfig",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), name, namespace)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "name of the SecretManagerConfig")
	cmd.Flags().StringVar(&namespace, "namespace", "default", "namespace of the SecretManagerConfig")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func runStatus(ctx context.Context, name, namespace string) error {
	c, err := newClient()
	if err != nil {
		return fmt.Errorf("building client: %w", err)
	}

	var smc secretmanagerv1alpha1.SecretManagerConfig
	key := types.NamespacedName{Name: name, Namespace: namespace}
	if err := c.Get(ctx, key, &smc); err != nil {
		return fmt.Errorf("getting %s: %w", key, err)
	}

	status := smc.Status
	fmt.Printf("Name:              %s\n", smc.Name)
	fmt.Printf("Namespace:         %s\n", smc.Namespace)
	fmt.Printf("Phase:             %s\n", phaseOrUnknown(status.Phase))
	fmt.Printf("Description:       %s\n", status.Description)
	fmt.Printf("SecretsSynced:     %d\n", status.SecretsSynced)
	fmt.Printf("ObservedGen:       %d\n", status.ObservedGeneration)
	if status.LastReconcileTime != nil {
		fmt.Printf("LastReconcile:     %s\n", status.LastReconcileTime.Format("2006-01-02T15:04:05Z07:00"))
	}
	if status.NextReconcileTime != nil {
		fmt.Printf("NextReconcile:     %s\n", status.NextReconcileTime.Format("2006-01-02T15:04:05Z07:00"))
	}
	fmt.Printf("SOPS decryption:   %s\n", status.SOPS.DecryptionStatus)
	if status.SOPS.LastDecryptionError != "" {
		fmt.Printf("SOPS last error:   %s\n", status.SOPS.LastDecryptionError)
	}
	fmt.Printf("Secrets tracked:   %d\n", len(status.Sync.Secrets))
	fmt.Printf("Properties tracked: %d\n", len(status.Sync.Properties))

	return nil
}
