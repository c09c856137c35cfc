// Package email envía notificaciones transaccionales por SMTP (go-mail).
//
// El único mensaje del servicio es el aviso de reconexión contable: cuando el
// proveedor rechaza el refresh token la credencial se borra y se notifica al
// email del tenant. Sin SMTP configurado se usa LogNotifier.
package email
