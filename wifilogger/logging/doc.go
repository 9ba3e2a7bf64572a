// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

/*

wifilogger emits or proxies the following sources of logging:

1. Internal logs: the pipeline's own diagnostics (dispatcher, transports), written by a dedicated logrus logger straight to the console
2. Producer logs: calls made through Logger (Errorf, Warnf, ...) carrying a tag and the caller's function and line
3. Routed logs: anything written through the standard library log package or the logrus standard logger once Route has installed a Router
4. Hooked logs: entries of any logrus logger carrying a Hook

It has the following log sinks:

1. Console: every producer, routed and internal line is written to the console, whether or not it reaches the network
2. Queue: producer, routed and hooked lines are copied into records and offered to the queue, which the dispatcher drains into the transport

Internal logs never reach the queue, so a failing transport cannot feed on its own diagnostics.

*/
package logging
