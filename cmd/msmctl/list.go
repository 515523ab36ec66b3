package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"sigs.k8s.io/controller-runtime/pkg/client"

	secretmanagerv1alpha1 "github.com/microscaler/secret-manager-controller/api/v1alpha1"
)

func newListCmd() *cobra.Command {
	var namespace string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List SecretManagerConfig resources",
		Long: `list prints every SecretManagerConfig in the given namespace, or across all namespaces when --namespace is omitted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context(), namespace)
		},
	}

	cmd.Flags().StringVar(&namespace, "namespace", "", "namespace to list from (all namespaces if unset)")

	return cmd
}

func runList(ctx context.Context, namespace string) error {
	c, err := newClient()
	if err != nil {
		return fmt.Errorf("building client: %w", err)
	}

	var list secretmanagerv1alpha1.SecretManagerConfigList
	opts := []client.ListOption{}
	if namespace != "" {
		opts = append(opts, client.InNamespace(namespace))
	}
	if err := c.List(ctx, &list, opts...); err != nil {
		return fmt.Errorf("listing SecretManagerConfigs: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAMESPACE\tNAME\tPHASE\tSECRETS\tSUSPENDED")
	for _, item := range list.Items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\n",
			item.Namespace, item.Name, phaseOrUnknown(item.Status.Phase), item.Status.SecretsSynced, item.Spec.Suspend)
	}
	return w.Flush()
}

func phaseOrUnknown(phase string) string {
	if phase == "" {
		return "Unknown"
	}
	return phase
}
