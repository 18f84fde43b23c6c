package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/minichain/minichain/foundation/blockchain/chain"
	"github.com/minichain/minichain/foundation/blockchain/database"
	"github.com/minichain/minichain/foundation/blockchain/genesis"
	"github.com/minichain/minichain/foundation/blockchain/node"
	"github.com/minichain/minichain/foundation/logger"
)

var (
	nodeListen  string
	nodeConnect []string
	nodeMiner   string
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Run the node: listen for peers, gossip and mine",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := logger.New("NODE")
		if err != nil {
			return err
		}
		defer log.Sync()

		c, err := loadChainOrNew()
		if err != nil {
			return err
		}

		mp, err := loadMempool()
		if err != nil {
			return err
		}

		var minerID database.AccountID
		if nodeMiner != "" {
			minerID, err = resolveAccount(nodeMiner)
			if err != nil {
				return err
			}
		}

		nd, err := node.New(node.Config{
			Listen:      nodeListen,
			Connect:     nodeConnect,
			Chain:       c,
			Mempool:     mp,
			ChainPath:   chainPath,
			MempoolPath: mempoolPath,
			MinerID:     minerID,
			EvHandler: func(v string, args ...any) {
				log.Infow(fmt.Sprintf(v, args...))
			},
		})
		if err != nil {
			return err
		}
		nd.Start()

		log.Infow("node started", "listen", nd.Addr(), "connect", nodeConnect, "height", c.Height())

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
		<-shutdown

		return nd.Shutdown()
	},
}

// loadChainOrNew starts a fresh chain when no chain file exists, so
// running the node does not require a separate init.
func loadChainOrNew() (*chain.Chain, error) {
	if _, err := os.Stat(chainPath); err != nil {
		return chain.New(genesis.DefaultDifficulty), nil
	}

	return loadChain()
}

func init() {
	nodeCmd.Flags().StringVar(&nodeListen, "listen", "0.0.0.0:9080", "address to accept peer connections on")
	nodeCmd.Flags().StringSliceVar(&nodeConnect, "connect", nil, "peer addresses to dial on startup")
	nodeCmd.Flags().StringVar(&nodeMiner, "miner", "", "key file name or address credited with block rewards")
	rootCmd.AddCommand(nodeCmd)
}
