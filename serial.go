// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ntls

import "code.hybscloud.com/atomix"

// Serial tags an established Stream or a Pipe pair in logs.
// Zero is never handed out.
type Serial = uint32

// serials is shared by streams and pipes; a stream and the pipe under it
// carry distinct values.
var serials atomix.Uint32

func nextSerial() Serial { return serials.Add(1) }
