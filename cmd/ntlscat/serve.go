// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package main

import (
	"code.hybscloud.com/ntls"
	"github.com/spf13/cobra"
)

func serveCmd(g *globals) *cobra.Command {
	var (
		addr     string
		identity string
		password string
		readSize int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept connections and echo what each client sends",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			rt, err := g.setup(ctx, "ntlscat-serve")
			if err != nil {
				return err
			}
			defer rt.poller.Close()

			var acceptor *ntls.Acceptor
			if !g.plain {
				ac := rt.config.Acceptor
				if identity != "" {
					ac.Identity, ac.Password = identity, password
				}
				if acceptor, err = ac.Build(rt.options()...); err != nil {
					return err
				}
			}

			ln, err := ntls.ListenTCP(rt.poller, addr)
			if err != nil {
				return err
			}
			defer ln.Close()
			rt.log.Info().Stringer("addr", ln.Addr()).Bool("plain", g.plain).Msg("listening")

			go func() {
				for {
					conn, err := ntls.Block(ln.PollAccept)
					if err != nil {
						rt.log.Error().Err(err).Msg("accept")
						return
					}
					go rt.echo(acceptor, conn, readSize)
				}
			}()
			<-ctx.Done()
			rt.log.Info().Msg("shutting down")
			return nil
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "127.0.0.1:8443", "listen address")
	cmd.Flags().StringVar(&identity, "identity", "", "PKCS#12 identity file (overrides config)")
	cmd.Flags().StringVar(&password, "password", "", "identity password")
	cmd.Flags().IntVar(&readSize, "read-size", 4096, "bytes requested per read")

	return cmd
}

func (rt *env) echo(acceptor *ntls.Acceptor, conn *ntls.TCPConn, readSize int) {
	defer conn.Close()
	log := rt.log.With().Stringer("conn", conn).Logger()

	var hs *ntls.Handshake[*ntls.TCPConn]
	if acceptor == nil {
		hs = ntls.Plain(conn, ntls.WithRole("server"), ntls.WithHandshakeMetrics(rt.metrics))
	} else {
		hs = ntls.Accept(acceptor, conn)
	}
	stream, err := ntls.Block(hs.Poll)
	if err != nil {
		log.Warn().Err(err).Msg("handshake")
		return
	}
	res := ntls.ExecExpr(stream, ntls.Echo(readSize))
	if err, ok := res.GetLeft(); ok {
		log.Warn().Err(err).Msg("echo")
		return
	}
	n, _ := res.GetRight()
	log.Info().Uint32("serial", stream.Serial()).Int("bytes", n).Msg("echoed")
}
