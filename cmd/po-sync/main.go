// Command po-sync loads a purchase order through the CRM API, reconciles the
// gallery images of its line items and prints them. It can also attach an
// image to a line item and save the purchase order back, link an external
// image URL to a line item, or detach an image from one.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/bitfantasy/nimo-crm/internal/client"
	"github.com/bitfantasy/nimo-crm/internal/config"
	"github.com/bitfantasy/nimo-crm/internal/crm/entity"
	"github.com/bitfantasy/nimo-crm/internal/crm/service"
	"github.com/bitfantasy/nimo-crm/internal/reconcile"
	"github.com/bitfantasy/nimo-crm/internal/workflow"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type globals struct {
	cfg     *config.Config
	baseURL string
	token   string
	verbose bool
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := newRootCmd(cfg).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	g := &globals{cfg: cfg}
	root := &cobra.Command{
		Use:          "po-sync",
		Short:        "Purchase order gallery tooling",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&g.baseURL, "base-url", cfg.Client.BaseURL, "CRM API base URL")
	root.PersistentFlags().StringVar(&g.token, "token", cfg.Client.Token, "API bearer token")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Debug logging")
	root.PersistentFlags().Int64("po", 0, "Purchase order ID (required)")
	_ = root.MarkPersistentFlagRequired("po")

	root.AddCommand(newGalleryCmd(g), newAttachCmd(g), newLinkCmd(g), newDetachCmd(g))
	return root
}

func newGalleryCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "gallery",
		Short: "Reconcile and print line item images",
		RunE: func(cmd *cobra.Command, args []string) error {
			editor, logger, err := g.load(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			renderGallery(cmd.OutOrStdout(), editor.Items())
			renderStats(cmd.OutOrStdout(), editor.Stats())
			return nil
		},
	}
}

func newAttachCmd(g *globals) *cobra.Command {
	var (
		itemID      int64
		file        string
		imageType   string
		description string
	)
	cmd := &cobra.Command{
		Use:   "attach",
		Short: "Attach an image file to a line item and save",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("读取图片失败: %w", err)
			}
			editor, logger, err := g.load(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			key := -1
			for _, li := range editor.Items() {
				if li.ID == itemID {
					key = li.Key
				}
			}
			if key < 0 {
				return fmt.Errorf("line item %d: %w", itemID, workflow.ErrUnknownItem)
			}
			err = editor.AttachLocalImage(key, workflow.LocalImage{
				Filename:    filepath.Base(file),
				Data:        data,
				Type:        imageType,
				Description: description,
			})
			if err != nil {
				return err
			}

			report, err := editor.Save(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %d image(s), updated %d item(s)\n", report.Uploaded, report.Updated)
			renderGallery(cmd.OutOrStdout(), editor.Items())
			return report.Err()
		},
	}
	cmd.Flags().Int64Var(&itemID, "item", 0, "Line item ID (required)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Image file (required)")
	cmd.Flags().StringVar(&imageType, "type", "OTHER", "LOGO, ARTWORK or OTHER")
	cmd.Flags().StringVar(&description, "description", "", "Image description")
	_ = cmd.MarkFlagRequired("item")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newLinkCmd(g *globals) *cobra.Command {
	var (
		itemID      int64
		imageURL    string
		imageType   string
		description string
	)
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Register an external image URL for a line item",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := g.client()
			if err := g.checkItem(cmd, c, itemID); err != nil {
				return err
			}
			img, err := c.CreateImageFromURL(cmd.Context(), &service.CreateImageURLRequest{
				FKItemID:    itemID,
				FKItemType:  entity.ItemTypePurchaseOrders,
				URL:         imageURL,
				Type:        imageType,
				Description: description,
			})
			if err != nil {
				return fmt.Errorf("登记图片失败: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "linked image %d (%s) to item %d\n", img.ID, img.Filename, itemID)
			return nil
		},
	}
	cmd.Flags().Int64Var(&itemID, "item", 0, "Line item ID (required)")
	cmd.Flags().StringVar(&imageURL, "url", "", "Image URL (required)")
	cmd.Flags().StringVar(&imageType, "type", "OTHER", "LOGO, ARTWORK or OTHER")
	cmd.Flags().StringVar(&description, "description", "", "Image description")
	_ = cmd.MarkFlagRequired("item")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func newDetachCmd(g *globals) *cobra.Command {
	var itemID, imageID int64
	cmd := &cobra.Command{
		Use:   "detach",
		Short: "Delete an image from a line item gallery",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := g.client()
			if err := g.checkItem(cmd, c, itemID); err != nil {
				return err
			}
			images, err := c.FetchImageGallery(cmd.Context(), itemID, entity.ItemTypePurchaseOrders)
			if err != nil {
				return fmt.Errorf("获取图片失败: %w", err)
			}
			found := false
			for _, img := range images {
				found = found || img.ID == imageID
			}
			if !found {
				return fmt.Errorf("image %d is not attached to item %d", imageID, itemID)
			}
			affected, err := c.DeleteImage(cmd.Context(), imageID)
			if err != nil {
				return fmt.Errorf("删除图片失败: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d image(s) from item %d\n", affected, itemID)
			return nil
		},
	}
	cmd.Flags().Int64Var(&itemID, "item", 0, "Line item ID (required)")
	cmd.Flags().Int64Var(&imageID, "image", 0, "Image ID (required)")
	_ = cmd.MarkFlagRequired("item")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}

func (g *globals) client() *client.Client {
	cc := g.cfg.Client
	cc.BaseURL, cc.Token = g.baseURL, g.token
	return client.NewFromConfig(cc)
}

// checkItem 行项须属于 --po 指定的采购订单
func (g *globals) checkItem(cmd *cobra.Command, c *client.Client, itemID int64) error {
	poID, _ := cmd.Flags().GetInt64("po")
	items, err := c.ItemsByPurchaseOrder(cmd.Context(), poID)
	if err != nil {
		return fmt.Errorf("获取采购订单 %d 行项失败: %w", poID, err)
	}
	for _, it := range items {
		if it.ID == itemID {
			return nil
		}
	}
	return fmt.Errorf("line item %d of purchase order %d: %w", itemID, poID, workflow.ErrUnknownItem)
}

// load 创建编辑器并加载采购订单（含图片对齐）
func (g *globals) load(cmd *cobra.Command) (*workflow.Editor, *zap.Logger, error) {
	poID, _ := cmd.Flags().GetInt64("po")
	logger, err := g.logger()
	if err != nil {
		return nil, nil, err
	}

	opts := workflow.DefaultOptions()
	opts.Reconcile = reconcileOptions(g.cfg.Reconcile)

	editor := workflow.NewEditor(g.client(), opts, logger)
	if err := editor.Load(cmd.Context(), poID); err != nil {
		return nil, nil, fmt.Errorf("加载采购订单 %d 失败: %w", poID, err)
	}
	return editor, logger, nil
}

func (g *globals) logger() (*zap.Logger, error) {
	zapCfg := zap.NewDevelopmentConfig()
	if !g.verbose {
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	return zapCfg.Build()
}

func reconcileOptions(cfg config.ReconcileConfig) reconcile.Options {
	return reconcile.Options{
		MaxRetryAttempts: cfg.MaxRetryAttempts,
		RetryDelay:       cfg.RetryDelay,
		SkipDelay:        cfg.SkipDelay,
		SettleDelay:      cfg.SettleDelay,
	}
}

func renderGallery(w io.Writer, items []workflow.LineItem) {
	data := [][]string{}
	for _, li := range items {
		gallery := li.Gallery()
		if len(gallery) == 0 {
			data = append(data, []string{itemLabel(li), li.ItemName, loadedLabel(li), "-", "-", "-"})
			continue
		}
		for _, img := range gallery {
			data = append(data, []string{itemLabel(li), li.ItemName, loadedLabel(li), img.Type, string(img.Source), img.Filename})
		}
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Item", "Name", "Images", "Type", "Source", "File"})
	table.SetAutoWrapText(false)
	table.AppendBulk(data)
	table.Render()
}

func renderStats(w io.Writer, st reconcile.Stats) {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.AppendBulk([][]string{
		{"Fetches", strconv.Itoa(st.Fetches)},
		{"Loaded", strconv.Itoa(st.Loaded)},
		{"Gave up", strconv.Itoa(st.GaveUp)},
		{"Skipped", strconv.Itoa(st.Skipped)},
		{"Already loaded", strconv.Itoa(st.AlreadyLoaded)},
	})
	table.Render()
}

func itemLabel(li workflow.LineItem) string {
	if li.ID <= 0 {
		return "new"
	}
	return strconv.FormatInt(li.ID, 10)
}

func loadedLabel(li workflow.LineItem) string {
	if li.ImagesLoaded {
		return "loaded"
	}
	return "pending"
}
