// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package main

import (
	"fmt"
	"io"
	"net"
	"os"

	"code.hybscloud.com/kont"
	"code.hybscloud.com/ntls"
	"github.com/spf13/cobra"
)

func connectCmd(g *globals) *cobra.Command {
	var (
		insecure bool
		domain   string
	)

	cmd := &cobra.Command{
		Use:   "connect <addr>",
		Short: "Send stdin to a server and copy the reply to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			rt, err := g.setup(ctx, "ntlscat-connect")
			if err != nil {
				return err
			}
			defer rt.poller.Close()

			addr := args[0]
			if domain == "" {
				if domain, _, err = net.SplitHostPort(addr); err != nil {
					return err
				}
			}
			payload, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}

			conn, err := ntls.DialTCP(rt.poller, addr)
			if err != nil {
				return err
			}
			defer conn.Close()

			var hs *ntls.Handshake[*ntls.TCPConn]
			if g.plain {
				hs = ntls.Plain(conn, ntls.WithRole("client"), ntls.WithHandshakeMetrics(rt.metrics))
			} else {
				cc := rt.config.Connector
				if insecure {
					cc.AcceptInvalidCerts = true
				}
				connector, err := cc.Build(rt.options()...)
				if err != nil {
					return err
				}
				hs = ntls.Connect(connector, domain, conn)
			}
			stream, err := ntls.Block(hs.Poll)
			if err != nil {
				return err
			}
			rt.log.Debug().Uint32("serial", stream.Serial()).Msg("established")

			exchange := ntls.WriteThen(payload, ntls.FlushThen(
				kont.Then(kont.Perform(ntls.Shutdown{}), ntls.ReadAll()),
			))
			res := ntls.Exec(stream, exchange)
			if err, ok := res.GetLeft(); ok {
				return fmt.Errorf("exchange: %w", err)
			}
			reply, _ := res.GetRight()
			_, err = os.Stdout.Write(reply)
			return err
		},
	}

	cmd.Flags().BoolVarP(&insecure, "insecure", "k", false, "accept any server certificate")
	cmd.Flags().StringVar(&domain, "domain", "", "server name to verify (defaults to the host of addr)")

	return cmd
}
