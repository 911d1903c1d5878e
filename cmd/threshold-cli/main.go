// threshold-cli is the benchmark and demo harness around the protocol
// core: it wires TCP transports between parties and drives the 2-of-2 and
// t-of-N protocols. It is not part of the core — the protocols themselves
// know nothing about TCP, flags, or keyshare files.
package main

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/KimlikDAO/mpecdsa-sub000/pkg/curve"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/ecdsa"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/party"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/pool"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/threshold"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/twop"
)

var (
	listenPort   int
	addrCSV      string
	iterations   int
	partyCount   int
	thresholdT   int
	myIndex      int
	bobRole      bool
	benchSetup   bool
	benchMult    bool
	serverAddr   string
	counterparty int
	message      string
	outputFile   string
	keyshareIn   string
	passphrase   string
)

var rootCmd = &cobra.Command{
	Use:           "threshold-cli",
	Short:         "Threshold ECDSA signing over secp256k1",
	Long:          "Benchmark and demo harness for the 2-of-2 and t-of-N threshold ECDSA protocols.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

var sign2pCmd = &cobra.Command{
	Use:   "sign2p",
	Short: "Run the dedicated 2-of-2 signing protocol over TCP",
	Long: `Run 2-of-2 setup and a batch of signatures between two processes.
The Bob role (-b) listens on -p and assembles each signature; the Alice
role connects to -c and never sees the completed signatures.`,
	RunE: runSign2P,
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Run t-of-N distributed key generation",
	Long: `Establish a t-of-N threshold key across the parties listed in -a.
Each party ends up holding one point on the joint polynomial plus the
pairwise OT-extension state later signatures are built on. Since the
OT state is never persisted, keygen output (--output) records only the
public group key and this party's share for out-of-band inspection.`,
	RunE: runKeygen,
}

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Run t-of-N keygen followed by 2-of-N signing",
	Long: `Run a fresh t-of-N setup across the parties in -a, then sign -n
messages pairwise with --counterparty. Parties not in the signing pair
set up and exit.`,
	RunE: runThresholdSign,
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run in-process benchmarks",
	Long: `Benchmark the protocols with all parties running in-process over
pipes: 2-of-2 signing by default, t-of-N setup with --bench_setup, the
multi-party multiplication fan-in with --bench_mult.`,
	RunE: runBench,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.IntVarP(&listenPort, "port", "p", 12345, "port this party listens on")
	pf.StringVarP(&addrCSV, "addresses", "a", "", "comma-separated host:port list, one per party, ordered by index")
	pf.IntVarP(&iterations, "iterations", "n", 1, "number of signing (or setup) iterations")
	pf.IntVarP(&partyCount, "parties", "N", 2, "total party count")
	pf.IntVarP(&thresholdT, "threshold", "T", 2, "signing threshold t")
	pf.IntVarP(&myIndex, "player", "P", 0, "this party's index")
	pf.StringVar(&message, "message", "The Quick Brown Fox Jumped Over The Lazy Dog", "message to sign")
	pf.StringVar(&passphrase, "passphrase", "", "passphrase for keyshare files")

	sign2pCmd.Flags().BoolVarP(&bobRole, "bob", "b", false, "play the Bob role (listens, assembles signatures)")
	sign2pCmd.Flags().StringVarP(&serverAddr, "connect", "c", "", "host:port of the listening counterparty (Alice role)")

	keygenCmd.Flags().StringVar(&outputFile, "output", "", "write an encrypted keyshare record to this path")

	signCmd.Flags().IntVar(&counterparty, "counterparty", -1, "index of the party to sign with (omit to only participate in setup)")
	signCmd.Flags().StringVar(&keyshareIn, "keyshare", "", "compare the resulting group key against this keyshare file")

	benchCmd.Flags().BoolVar(&benchSetup, "bench_setup", false, "benchmark t-of-N setup instead of 2-of-2 signing")
	benchCmd.Flags().BoolVar(&benchMult, "bench_mult", false, "benchmark the multi-party multiplication fan-in")

	rootCmd.AddCommand(sign2pCmd, keygenCmd, signCmd, benchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// pairConn establishes the single full-duplex connection a 2-of-2 run
// needs: Bob listens, Alice dials.
func pairConn() (net.Conn, error) {
	if bobRole {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", listenPort))
		if err != nil {
			return nil, err
		}
		defer ln.Close()
		return ln.Accept()
	}
	if serverAddr == "" {
		return nil, fmt.Errorf("the Alice role needs -c to locate the listening Bob")
	}
	var conn net.Conn
	var err error
	for attempt := 0; attempt < 100; attempt++ {
		conn, err = net.Dial("tcp", serverAddr)
		if err == nil {
			return conn, nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return nil, err
}

func runSign2P(cmd *cobra.Command, args []string) error {
	conn, err := pairConn()
	if err != nil {
		return err
	}
	defer conn.Close()
	recv := bufio.NewReader(conn)
	send := bufio.NewWriter(conn)

	start := time.Now()
	if bobRole {
		bob, err := twop.SetupBob(rand.Reader, recv, send)
		if err != nil {
			return err
		}
		fmt.Printf("setup done in %v, joint pk %s\n", time.Since(start), pointHex(bob.JointPublicKey()))

		table := curve.PrecompTable(bob.JointPublicKey())
		signStart := time.Now()
		for i := 0; i < iterations; i++ {
			r, s, err := bob.Sign([]byte(message), rand.Reader, recv, send)
			if err != nil {
				return err
			}
			if !ecdsa.VerifyWithTables(table, []byte(message), r, s) {
				return fmt.Errorf("signature %d failed verification", i)
			}
			if i == 0 {
				fmt.Printf("r = %x\ns = %x\n", r.Bytes(), s.Bytes())
			}
		}
		reportTiming("sign", iterations, time.Since(signStart))
		return nil
	}

	alice, err := twop.SetupAlice(rand.Reader, recv, send)
	if err != nil {
		return err
	}
	fmt.Printf("setup done in %v, joint pk %s\n", time.Since(start), pointHex(alice.JointPublicKey()))

	signStart := time.Now()
	for i := 0; i < iterations; i++ {
		if err := alice.Sign([]byte(message), rand.Reader, recv, send); err != nil {
			return err
		}
	}
	reportTiming("sign", iterations, time.Since(signStart))
	return nil
}

func meshSetup() (*threshold.Signer, *tcpTransport, error) {
	addrs := parseAddrs(addrCSV)
	if len(addrs) < 2 {
		return nil, nil, fmt.Errorf("-a must list at least two party addresses")
	}
	if myIndex < 0 || myIndex >= len(addrs) {
		return nil, nil, fmt.Errorf("-P %d out of range for %d parties", myIndex, len(addrs))
	}
	self := party.ID(myIndex)
	transport, err := dialMesh(self, addrs, listenPort)
	if err != nil {
		return nil, nil, err
	}

	start := time.Now()
	signer, err := threshold.Setup(self, party.Range(len(addrs)), thresholdT, rand.Reader, transport)
	if err != nil {
		transport.Close()
		return nil, nil, err
	}
	fmt.Printf("setup done in %v, group pk %s\n", time.Since(start), pointHex(signer.GroupPublicKey()))
	return signer, transport, nil
}

func runKeygen(cmd *cobra.Command, args []string) error {
	signer, transport, err := meshSetup()
	if err != nil {
		return err
	}
	defer transport.Close()

	if outputFile != "" {
		rec := keyshareRecord{
			Mode:       "threshold",
			Self:       uint32(myIndex),
			PartyCount: uint32(len(parseAddrs(addrCSV))),
			Threshold:  uint32(thresholdT),
			GroupPk:    pointToBytes(signer.GroupPublicKey()),
			Share:      scalarToBytes(signer.PrivateShare()),
		}
		return saveKeyshare(outputFile, passphrase, rec)
	}
	return nil
}

func runThresholdSign(cmd *cobra.Command, args []string) error {
	signer, transport, err := meshSetup()
	if err != nil {
		return err
	}
	defer transport.Close()

	if keyshareIn != "" {
		rec, err := loadKeyshare(keyshareIn, passphrase)
		if err != nil {
			return err
		}
		if !curve.PointFromBytes(rec.GroupPk).Equal(signer.GroupPublicKey()) {
			return fmt.Errorf("group key does not match the keyshare record %s", keyshareIn)
		}
		fmt.Printf("group key matches keyshare record %s\n", keyshareIn)
	}

	if counterparty < 0 {
		// Not part of the signing pair: this party's job ended at setup.
		return nil
	}
	other := party.ID(counterparty)
	if other == party.ID(myIndex) {
		return fmt.Errorf("--counterparty must name a different party")
	}
	if int(other) >= len(parseAddrs(addrCSV)) {
		return fmt.Errorf("--counterparty %d out of range", counterparty)
	}

	table := curve.PrecompTable(signer.GroupPublicKey())
	signStart := time.Now()
	for i := 0; i < iterations; i++ {
		r, s, err := signer.Sign(other, []byte(message), rand.Reader, transport)
		if err != nil {
			return err
		}
		if r != nil {
			if !ecdsa.VerifyWithTables(table, []byte(message), r, s) {
				return fmt.Errorf("signature %d failed verification", i)
			}
			if i == 0 {
				fmt.Printf("r = %x\ns = %x\n", r.Bytes(), s.Bytes())
			}
		}
	}
	reportTiming("sign", iterations, time.Since(signStart))
	return nil
}

func runBench(cmd *cobra.Command, args []string) error {
	fmt.Printf("worker pool size: %d\n", pool.Size(partyCount))
	if benchSetup {
		return benchThresholdSetup()
	}
	if benchMult {
		return benchMulShare()
	}
	return benchSign2PLocal()
}

func pointHex(p *curve.Point) string {
	b := p.Bytes()
	return hex.EncodeToString(b[:])
}

func reportTiming(what string, iters int, total time.Duration) {
	if iters < 1 {
		iters = 1
	}
	fmt.Printf("%s: %d iterations in %v (%v avg)\n", what, iters, total, total/time.Duration(iters))
}
