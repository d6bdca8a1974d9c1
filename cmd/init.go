package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter schema.yaml",
	Long: `Write a starter schema.yaml into the current directory.

The starter covers the shapes the model supports: multiple namespaces,
composite primary keys, cross-namespace foreign keys, tagged relation pairs,
a self-reference, check constraints, and a partial index.

Examples:
  schemakit init          # Create schema.yaml
  schemakit validate      # Check it
`,
	Run: func(cmd *cobra.Command, args []string) {
		if _, err := os.Stat("schema.yaml"); err == nil {
			fmt.Println("❌ schema.yaml already exists!")
			os.Exit(1)
		}

		content := `# Starter schema: two namespaces, composite keys, tagged relations,
# a self-reference, checks, and a partial index.
namespaces:
  - name: auth
    tables:
      - name: users
        columns:
          - name: id
            type: uuid
          - name: email
            type: varchar(255)
            unique: true
          - name: display_name
            type: text
            nullable: true
          - name: manager_id
            type: uuid
            nullable: true
          - name: created_at
            type: timestamptz
            default: now()
        primary_key: [id]
        checks:
          - name: users_email_check
            expression: "email <> ''"
            columns: [email]
        foreign_keys:
          - name: users_manager_fkey
            columns: [manager_id]
            references: users
            ref_columns: [id]
            on_delete: SET NULL

  - name: shop
    tables:
      - name: addresses
        columns:
          - name: id
            type: bigint
          - name: street
            type: text
          - name: city
            type: text
        primary_key: [id]

      - name: orders
        columns:
          - name: id
            type: bigint
          - name: customer_id
            type: uuid
          - name: billing_address_id
            type: bigint
          - name: shipping_address_id
            type: bigint
          - name: status
            type: text
            default: pending
          - name: placed_at
            type: timestamptz
            default: now()
        primary_key: [id]
        foreign_keys:
          - name: orders_customer_fkey
            columns: [customer_id]
            references: auth.users
            ref_columns: [id]
            on_delete: RESTRICT
          - name: orders_billing_fkey
            columns: [billing_address_id]
            references: addresses
            ref_columns: [id]
          - name: orders_shipping_fkey
            columns: [shipping_address_id]
            references: addresses
            ref_columns: [id]
        indexes:
          - name: orders_billing_idx
            columns: [billing_address_id]
          - name: orders_shipping_idx
            columns: [shipping_address_id]
          - name: orders_open_idx
            columns: [customer_id]
            predicate: "status <> 'fulfilled'"

      - name: order_items
        columns:
          - name: order_id
            type: bigint
          - name: line_no
            type: integer
          - name: sku
            type: varchar(64)
          - name: quantity
            type: integer
            default: "1"
        primary_key: [order_id, line_no]
        checks:
          - name: order_items_quantity_check
            expression: "quantity > 0"
            columns: [quantity]
        foreign_keys:
          - name: order_items_order_fkey
            columns: [order_id]
            references: orders
            ref_columns: [id]
            on_delete: CASCADE

# Tagged relations pair across directions. The "manager" pair makes the
# self-referential foreign key on auth.users legal; "billing" and "shipping"
# keep the two orders->addresses foreign keys unambiguous.
relationships:
  - name: manager
    from: auth.users
    to: auth.users
    cardinality: many-to-one
  - name: manager
    from: auth.users
    to: auth.users
    cardinality: one-to-many
  - name: billing
    from: shop.orders
    to: shop.addresses
    cardinality: many-to-one
  - name: billing
    from: shop.addresses
    to: shop.orders
    cardinality: one-to-many
  - name: shipping
    from: shop.orders
    to: shop.addresses
    cardinality: many-to-one
  - name: shipping
    from: shop.addresses
    to: shop.orders
    cardinality: one-to-many
`

		if err := os.WriteFile("schema.yaml", []byte(content), 0644); err != nil {
			fmt.Println("❌ Error creating schema.yaml:", err)
			os.Exit(1)
		}
		fmt.Println("✅ Created schema.yaml starter file.")
		fmt.Println("📝 Edit schema.yaml to describe your database")
		fmt.Println("🚀 Run 'schemakit validate' to check it, 'schemakit render' for DDL")
	},
}
