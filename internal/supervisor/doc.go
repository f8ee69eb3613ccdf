// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

/*
Package supervisor provides process supervision for Marquee using suture v4.

The tree organizes services into three layers for failure isolation:

	RootSupervisor ("marquee")
	├── DataSupervisor ("data-layer")
	│   ├── NATSServerService (embedded NATS only)
	│   └── local store maintenance (badger only)
	├── EngineSupervisor ("engine-layer")
	│   ├── renderer hub
	│   ├── telemetry worker
	│   ├── health sampler and status pusher
	│   ├── ping responder
	│   └── rotation controller
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A crash in one engine component restarts that component only; the renderer
socket and the local API keep serving while it comes back.

Crashed services restart immediately until FailureThreshold failures
accumulate (decaying at FailureDecay per second), after which the layer
backs off for FailureBackoff. On shutdown every service gets
ShutdownTimeout to return; UnstoppedServiceReport names the ones that did
not.

Events are logged through sutureslog into the zerolog bridge:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(),
	    supervisor.TreeConfigFrom(&cfg.Supervisor))
	tree.AddEngineService(services.NewRunnerService("rotation", ctrl))
	err = tree.Serve(ctx)
*/
package supervisor
