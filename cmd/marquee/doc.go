// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

/*
Command marquee runs the playback and device session engine on one display.

Startup order:

 1. Load configuration (defaults, config file, environment) and initialize
    logging.
 2. Open the local durable store (badger, or memory when no path is set).
 3. Open the shared store: an embedded NATS JetStream server, an external
    NATS deployment, or an in-process memory store.
 4. Build the engine: session, telemetry emitter, health sampler and
    status pusher, ping responder, kiosk manager, rotation controller and
    the renderer hub.
 5. Resume a persisted kiosk lockdown, then serve the supervisor tree until
    SIGINT or SIGTERM.

On shutdown the tree stops every component within the supervisor timeout;
the shared store, the embedded server and the local store are then closed
in that order.

Configuration is read from the file named by CONFIG_PATH, else from
config.yaml in the working directory or /etc/marquee/. Environment
variables such as DISPLAY_ID, STORE_BACKEND, NATS_URL and HTTP_PORT
override it.
*/
package main
