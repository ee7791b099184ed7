// Package system is the host-facing layer: running external commands,
// managing the service account, driving systemd, rendering the unit and
// wrapper artifacts, and polling service status.
//
// Everything goes through the Runner interface so workflows can be tested
// against a scripted fake without touching the host.
package system
