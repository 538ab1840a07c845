/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package dispatch

import "github.com/google/uuid"

// NewSessionID mints a per-connection identifier used in log lines and
// metric labels, mirroring the teacher's cos.GenTie() per-stream id
// (transport.NewMsgStream(client, dstURL, dstID) takes one as dstID).
func NewSessionID() string {
	return uuid.NewString()
}
