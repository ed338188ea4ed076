package graph

import (
	"fmt"

	"qrcode_dashboard/graph/model"

	"github.com/graphql-go/graphql"
)

var subscriptionEnum = graphql.NewEnum(graphql.EnumConfig{
	Name: "Subscription",
	Values: graphql.EnumValueConfigMap{
		"Simple":   &graphql.EnumValueConfig{Value: model.SubscriptionTierSimple},
		"Starter":  &graphql.EnumValueConfig{Value: model.SubscriptionTierStarter},
		"Ultimate": &graphql.EnumValueConfig{Value: model.SubscriptionTierUltimate},
	},
})

var versionEnum = graphql.NewEnum(graphql.EnumConfig{
	Name: "QRVersion",
	Values: graphql.EnumValueConfigMap{
		"QR1": &graphql.EnumValueConfig{Value: model.QRVersionQR1},
		"QR2": &graphql.EnumValueConfig{Value: model.QRVersionQR2},
	},
})

var credentialTypeEnum = graphql.NewEnum(graphql.EnumConfig{
	Name: "CredentialType",
	Values: graphql.EnumValueConfigMap{
		"member": &graphql.EnumValueConfig{Value: model.CredentialTypeMember},
		"guest":  &graphql.EnumValueConfig{Value: model.CredentialTypeGuest},
	},
})

var memberType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Member",
	Fields: graphql.Fields{
		"id":           &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
		"name":         &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"subscription": &graphql.Field{Type: graphql.NewNonNull(subscriptionEnum)},
		"createdAt":    &graphql.Field{Type: graphql.String},
	},
})

var credentialType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Credential",
	Fields: graphql.Fields{
		"id":        &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
		"memberId":  &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
		"number":    &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"version":   &graphql.Field{Type: graphql.NewNonNull(versionEnum)},
		"type":      &graphql.Field{Type: graphql.NewNonNull(credentialTypeEnum)},
		"createdAt": &graphql.Field{Type: graphql.String},
		"lastUsed":  &graphql.Field{Type: graphql.String},
	},
})

var identityType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Identity",
	Fields: graphql.Fields{
		"id":      &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
		"number":  &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"version": &graphql.Field{Type: graphql.NewNonNull(versionEnum)},
	},
})

var memberDetailsType = graphql.NewObject(graphql.ObjectConfig{
	Name: "MemberDetails",
	Fields: graphql.Fields{
		"member":     &graphql.Field{Type: graphql.NewNonNull(memberType)},
		"credential": &graphql.Field{Type: credentialType},
		"guests":     &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(credentialType)))},
	},
})

var memberDraftType = graphql.NewObject(graphql.ObjectConfig{
	Name: "MemberDraft",
	Fields: graphql.Fields{
		"sessionId":    &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
		"name":         &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"subscription": &graphql.Field{Type: graphql.NewNonNull(subscriptionEnum)},
		"member":       &graphql.Field{Type: identityType},
	},
})

var identityInput = graphql.NewInputObject(graphql.InputObjectConfig{
	Name: "IdentityInput",
	Fields: graphql.InputObjectConfigFieldMap{
		"id":      &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.ID)},
		"number":  &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		"version": &graphql.InputObjectFieldConfig{Type: versionEnum},
	},
})

var memberInput = graphql.NewInputObject(graphql.InputObjectConfig{
	Name: "MemberInput",
	Fields: graphql.InputObjectConfigFieldMap{
		"name":         &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		"subscription": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(subscriptionEnum)},
		"member":       &graphql.InputObjectFieldConfig{Type: identityInput},
		"guests":       &graphql.InputObjectFieldConfig{Type: graphql.NewList(graphql.NewNonNull(identityInput))},
	},
})

// NewSchema собирает схему и связывает поля с резолверами
func NewSchema(r *Resolver) (graphql.Schema, error) {
	query := r.Query()
	mutation := r.Mutation()

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"members": &graphql.Field{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(memberType))),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return query.Members(p.Context)
				},
			},
			"member": &graphql.Field{
				Type: memberDetailsType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id, _ := p.Args["id"].(string)
					return query.Member(p.Context, id)
				},
			},
			"credentials": &graphql.Field{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(credentialType))),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return query.Credentials(p.Context)
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"createMember": &graphql.Field{
				Type: graphql.NewNonNull(memberDetailsType),
				Args: graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(memberInput)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					form, err := memberFormFromArgs(p.Args["input"])
					if err != nil {
						return nil, err
					}
					return mutation.CreateMember(p.Context, form)
				},
			},
			"deleteMember": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Boolean),
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id, _ := p.Args["id"].(string)
					return mutation.DeleteMember(p.Context, id)
				},
			},
			"scan": &graphql.Field{
				Type: graphql.NewNonNull(memberDraftType),
				Args: graphql.FieldConfigArgument{
					"data": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					data, _ := p.Args["data"].(string)
					return mutation.Scan(p.Context, data)
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

func memberFormFromArgs(raw interface{}) (*model.MemberForm, error) {
	input, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid member input")
	}

	form := &model.MemberForm{}
	form.Name, _ = input["name"].(string)
	form.Subscription, _ = input["subscription"].(model.SubscriptionTier)

	if member, ok := input["member"].(map[string]interface{}); ok {
		identity := identityFromArgs(member)
		form.Member = &identity
	}

	if guests, ok := input["guests"].([]interface{}); ok {
		for _, guest := range guests {
			if fields, ok := guest.(map[string]interface{}); ok {
				form.Guests = append(form.Guests, identityFromArgs(fields))
			}
		}
	}

	return form, nil
}

func identityFromArgs(fields map[string]interface{}) model.Identity {
	var identity model.Identity
	identity.ID, _ = fields["id"].(string)
	identity.Number, _ = fields["number"].(string)
	identity.Version, _ = fields["version"].(model.QRVersion)
	return identity
}
