// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"billpay/cli/internal/checkout"
	"billpay/cli/internal/gateway"
)

var catalogOpts struct {
	country  string
	service  string
	provider string
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Browse billers and products",
}

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "List payable services",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := startApp(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		services, err := rt.app.Catalog.Services(cmd.Context(), catalogCountry())
		if err != nil {
			return gatewayFailure(err, "loading services")
		}
		data := pterm.TableData{{"ID", "Name", "Description"}}
		for _, s := range services {
			data = append(data, []string{s.Id.String(), s.Name, s.Description})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List providers of a service",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := startApp(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()
		ctx := cmd.Context()
		country := catalogCountry()

		services, err := rt.app.Catalog.Services(ctx, country)
		if err != nil {
			return gatewayFailure(err, "loading services")
		}
		service, err := pick("Service", catalogOpts.service, services, func(s gateway.Service) (string, string) { return s.Id.String(), s.Name })
		if err != nil {
			return err
		}
		providers, err := rt.app.Catalog.Providers(ctx, country, service)
		if err != nil {
			return gatewayFailure(err, "loading providers")
		}
		data := pterm.TableData{{"ID", "Name"}}
		for _, p := range providers {
			data = append(data, []string{p.Id.String(), p.Name})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "List products of a provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := startApp(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()
		ctx := cmd.Context()
		country := catalogCountry()

		services, err := rt.app.Catalog.Services(ctx, country)
		if err != nil {
			return gatewayFailure(err, "loading services")
		}
		service, err := pick("Service", catalogOpts.service, services, func(s gateway.Service) (string, string) { return s.Id.String(), s.Name })
		if err != nil {
			return err
		}
		providers, err := rt.app.Catalog.Providers(ctx, country, service)
		if err != nil {
			return gatewayFailure(err, "loading providers")
		}
		provider, err := pick("Provider", catalogOpts.provider, providers, func(p gateway.Provider) (string, string) { return p.Id.String(), p.Name })
		if err != nil {
			return err
		}
		products, err := rt.app.Catalog.Products(ctx, country, service, provider)
		if err != nil {
			return gatewayFailure(err, "loading products")
		}

		data := pterm.TableData{{"ID", "Name", "Amount", "Account field"}}
		for _, p := range products {
			lc := checkout.LabelContext{ServiceName: service.Name, ProviderName: provider.Name, ProductName: p.Name}
			field := ""
			if len(p.CreditPartyIdentifiers) > 0 {
				field = p.CreditPartyIdentifiers[0].Name
			}
			data = append(data, []string{p.Id.String(), p.Name, describePolicy(checkout.PolicyFor(p)), checkout.IdentifierLabel(field, lc)})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

func describePolicy(p checkout.AmountPolicy) string {
	switch {
	case p.Fixed:
		return fmt.Sprintf("%s %s (fixed)", checkout.FormatAmount(p.Default), p.Currency)
	case p.Min > 0 && p.Max > 0:
		return fmt.Sprintf("%s to %s %s", checkout.FormatAmount(p.Min), checkout.FormatAmount(p.Max), p.Currency)
	case p.Min > 0:
		return fmt.Sprintf("from %s %s", checkout.FormatAmount(p.Min), p.Currency)
	case p.Max > 0:
		return fmt.Sprintf("up to %s %s", checkout.FormatAmount(p.Max), p.Currency)
	}
	return "any " + p.Currency
}

func catalogCountry() string {
	return firstNonEmpty(catalogOpts.country, cfg.Checkout.Country, checkout.SupportedCountryCode)
}

func init() {
	catalogCmd.PersistentFlags().StringVar(&catalogOpts.country, "country", "", "country ISO code (default from config)")
	catalogCmd.PersistentFlags().StringVar(&catalogOpts.service, "service", "", "service id or name")
	catalogCmd.PersistentFlags().StringVar(&catalogOpts.provider, "provider", "", "provider id or name")
	catalogCmd.AddCommand(servicesCmd, providersCmd, productsCmd)
	rootCmd.AddCommand(catalogCmd)
}
