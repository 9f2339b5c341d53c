package main

import (
	"context"
	"log"
	"net/http"

	"go.uber.org/zap"

	"github.com/xdbsoft/docstore"
	"github.com/xdbsoft/docstore/api"
	"github.com/xdbsoft/docstore/rules"
	"github.com/xdbsoft/docstore/store"
)

func main() {

	cfg := docstore.Config{
		Backend: "memory",
		// OpenIDConnectIssuer: "https://accounts.google.com", // any OIDC provider
		Rules: []rules.Rule{
			{
				Path: "people/{id}",
				Allow: []rules.Allow{
					{Methods: []rules.Method{rules.READ}},
					{Methods: []rules.Method{rules.WRITE, rules.DELETE}, If: `path.id == user.id`},
				},
			},
		},
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	gw := store.NewMemoryGateway()
	if err := seed(gw); err != nil {
		log.Fatal(err)
	}

	s := docstore.NewWithGateway(cfg, gw, nil, logger.Sugar())
	s.On(func(ev docstore.Event) {
		log.Printf("%s %s/%s", ev.Type, ev.Database, ev.Document)
	})
	defer s.Close(context.Background())

	http.Handle("/", s.Handler())

	// curl 'http://localhost:8080/people?eyeColor=green'
	log.Fatal(http.ListenAndServe(":8080", nil))
}

func seed(gw api.Gateway) error {
	var docs []*api.Document
	for _, props := range []map[string]interface{}{
		{"_id": "1", "name": "Ada", "eyeColor": "green", "age": 36},
		{"_id": "2", "name": "Bob", "eyeColor": "blue", "age": 25},
	} {
		d, err := api.NewDocument(props)
		if err != nil {
			return err
		}
		docs = append(docs, d)
	}
	db, err := api.NewDatabase("people", docs...)
	if err != nil {
		return err
	}
	return gw.Persist(context.Background(), db)
}
