package server

import (
	"github.com/graphql-go/graphql"

	"github.com/mercatolabs/mercato/pkg/storage"
)

// isListField tells the shape guard which fields multiply the cost of their
// subtree. Kept next to the schema so the two cannot drift apart.
func isListField(name string) bool {
	switch name {
	case "products", "orders", "myOrders", "edges", "items":
		return true
	}
	return false
}

// newSchema wires the storefront schema to the server's resolvers. All
// relationship fields resolve through the per-request loader registry; no type
// embeds another entity directly.
func newSchema(s *Server) (graphql.Schema, error) {
	pageInfoType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PageInfo",
		Fields: graphql.Fields{
			"hasNextPage":     &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
			"hasPreviousPage": &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
			"startCursor":     &graphql.Field{Type: graphql.String},
			"endCursor":       &graphql.Field{Type: graphql.String},
		},
	})

	orderStatusEnum := graphql.NewEnum(graphql.EnumConfig{
		Name: "OrderStatus",
		Values: graphql.EnumValueConfigMap{
			"PENDING":   &graphql.EnumValueConfig{Value: storage.OrderStatusPending},
			"PAID":      &graphql.EnumValueConfig{Value: storage.OrderStatusPaid},
			"SHIPPED":   &graphql.EnumValueConfig{Value: storage.OrderStatusShipped},
			"CANCELLED": &graphql.EnumValueConfig{Value: storage.OrderStatusCancelled},
		},
	})

	connectionArgs := graphql.FieldConfigArgument{
		"first": &graphql.ArgumentConfig{Type: graphql.Int},
		"after": &graphql.ArgumentConfig{Type: graphql.String},
	}

	connection := func(name string, node graphql.Output) *graphql.Object {
		edge := graphql.NewObject(graphql.ObjectConfig{
			Name: name + "Edge",
			Fields: graphql.Fields{
				"node":   &graphql.Field{Type: node},
				"cursor": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			},
		})
		return graphql.NewObject(graphql.ObjectConfig{
			Name: name + "Connection",
			Fields: graphql.Fields{
				"edges":      &graphql.Field{Type: graphql.NewList(graphql.NewNonNull(edge))},
				"pageInfo":   &graphql.Field{Type: graphql.NewNonNull(pageInfoType)},
				"totalCount": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			},
		})
	}

	var userType, productType, orderType, orderItemType *graphql.Object
	var productConnectionType, orderConnectionType *graphql.Object

	userType = graphql.NewObject(graphql.ObjectConfig{
		Name: "User",
		Fields: graphql.FieldsThunk(func() graphql.Fields {
			return graphql.Fields{
				"id":        &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
				"name":      &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
				"isSeller":  &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
				"createdAt": &graphql.Field{Type: graphql.NewNonNull(graphql.DateTime)},
				"email": &graphql.Field{
					Type:    graphql.String,
					Resolve: s.resolveUserEmail,
				},
				"orders": &graphql.Field{
					Type:    orderConnectionType,
					Args:    connectionArgs,
					Resolve: s.resolveUserOrders,
				},
				"products": &graphql.Field{
					Type:    productConnectionType,
					Args:    connectionArgs,
					Resolve: s.resolveUserProducts,
				},
			}
		}),
	})

	productType = graphql.NewObject(graphql.ObjectConfig{
		Name: "Product",
		Fields: graphql.FieldsThunk(func() graphql.Fields {
			return graphql.Fields{
				"id":          &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
				"name":        &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
				"description": &graphql.Field{Type: graphql.String},
				"priceCents":  &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
				"createdAt":   &graphql.Field{Type: graphql.NewNonNull(graphql.DateTime)},
				"seller": &graphql.Field{
					Type:    userType,
					Resolve: s.resolveProductSeller,
				},
			}
		}),
	})

	orderItemType = graphql.NewObject(graphql.ObjectConfig{
		Name: "OrderItem",
		Fields: graphql.FieldsThunk(func() graphql.Fields {
			return graphql.Fields{
				"quantity":       &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
				"unitPriceCents": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
				"product": &graphql.Field{
					Type:    productType,
					Resolve: s.resolveOrderItemProduct,
				},
			}
		}),
	})

	orderType = graphql.NewObject(graphql.ObjectConfig{
		Name: "Order",
		Fields: graphql.FieldsThunk(func() graphql.Fields {
			return graphql.Fields{
				"id":         &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
				"status":     &graphql.Field{Type: graphql.NewNonNull(orderStatusEnum)},
				"totalCents": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
				"createdAt":  &graphql.Field{Type: graphql.NewNonNull(graphql.DateTime)},
				"user": &graphql.Field{
					Type:    userType,
					Resolve: s.resolveOrderUser,
				},
				"items": &graphql.Field{
					Type: graphql.NewList(graphql.NewNonNull(orderItemType)),
					Resolve: func(p graphql.ResolveParams) (interface{}, error) {
						order, err := orderSource(p)
						if err != nil {
							return nil, err
						}
						return order.Items, nil
					},
				},
			}
		}),
	})

	productConnectionType = connection("Product", productType)
	orderConnectionType = connection("Order", orderType)

	orderItemInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "OrderItemInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"productId": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.ID)},
			"quantity":  &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Int)},
		},
	})

	createOrderInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "CreateOrderInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"items": &graphql.InputObjectFieldConfig{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(orderItemInput))),
			},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"me": &graphql.Field{
				Type:    userType,
				Resolve: s.resolveMe,
			},
			"user": &graphql.Field{
				Type: userType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				},
				Resolve: s.resolveUser,
			},
			"product": &graphql.Field{
				Type: productType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				},
				Resolve: s.resolveProduct,
			},
			"products": &graphql.Field{
				Type: productConnectionType,
				Args: graphql.FieldConfigArgument{
					"search":        &graphql.ArgumentConfig{Type: graphql.String},
					"sellerId":      &graphql.ArgumentConfig{Type: graphql.ID},
					"minPriceCents": &graphql.ArgumentConfig{Type: graphql.Int},
					"maxPriceCents": &graphql.ArgumentConfig{Type: graphql.Int},
					"first":         &graphql.ArgumentConfig{Type: graphql.Int},
					"after":         &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: s.resolveProducts,
			},
			"order": &graphql.Field{
				Type: orderType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				},
				Resolve: s.resolveOrder,
			},
			"myOrders": &graphql.Field{
				Type:    orderConnectionType,
				Args:    connectionArgs,
				Resolve: s.resolveMyOrders,
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"createOrder": &graphql.Field{
				Type: orderType,
				Args: graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(createOrderInput)},
				},
				Resolve: s.resolveCreateOrder,
			},
			"cancelOrder": &graphql.Field{
				Type: orderType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				},
				Resolve: s.resolveCancelOrder,
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}
