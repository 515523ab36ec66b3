package main

import (
	"path/filepath"

	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/tools/clientcmd"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/util/homedir"
	"sigs.k8s.io/controller-runtime/pkg/client"

	secretmanagerv1alpha1 "github.com/microscaler/secret-manager-controller/api/v1alpha1"
)

var kubeconfigPath string

var rootCmd = &cobra.Command{
	Use:   "msmctl",
	Short: "Inspect and nudge SecretManagerConfig resources",
	Long: `msmctl is a small companion CLI for the secret-manager-controller operator.

  It lists SecretManagerConfig resources, prints their current sync status, and requests an out-of-band reconcile the same way annotating the resource by hand would.`,
}

func init() {
	defaultKubeconfig := ""
	if home := homedir.HomeDir(); home != "" {
		defaultKubeconfig = filepath.Join(home, ".kube", "config")
	}
	rootCmd.PersistentFlags().StringVar(&kubeconfigPath, "kubeconfig", defaultKubeconfig, "path to the kubeconfig file")

	rootCmd.AddCommand(newReconcileCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newStatusCmd())
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func newClient() (client.Client, error) {
	scheme := runtime.NewScheme()
	if err := clientgoscheme.AddToScheme(scheme); err != nil {
		return nil, err
	}
	if err := secretmanagerv1alpha1.AddToScheme(scheme); err != nil {
		return nil, err
	}

	restConfig, err := clientcmd.BuildConfigFromFlags("", kubeconfigPath)
	if err != nil {
		return nil, err
	}

	return client.New(restConfig, client.Options{Scheme: scheme})
}
