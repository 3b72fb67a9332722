// Package config loads execution profiles for sweeps. A profile names the
// environment (local pool or cluster scheduler), the simulation command and
// the resources one batch may claim; everything about the sweep itself
// (axes, seeds, phase) lives in the manifest instead, so the same manifest
// runs unchanged on a laptop and on an HPC login node.
//
// Profiles are YAML (gridsweep.yaml) resolved through viper, so every key
// can be overridden from the environment with a GRIDSWEEP_ prefix:
// GRIDSWEEP_CLUSTER_PARTITION=week overrides cluster.partition.
package config
