// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

/*
Package middleware provides the HTTP middleware shared by the kiosk API.

  - RequestID: assigns or propagates X-Request-ID and seeds the logging
    context with the request and correlation IDs
  - PrometheusMetrics: records request counts, durations and in-flight
    requests, labelled by the chi route pattern

Usage:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Route("/api/v1", func(r chi.Router) {
	    r.Use(middleware.PrometheusMetrics)
	    r.Get("/notifications/state", handler.NotificationsState)
	})

The route pattern is used as the endpoint label so that path parameters do
not create unbounded label cardinality. Outside a chi router the URL path
is used instead.
*/
package middleware
