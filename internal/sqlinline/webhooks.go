package sqlinline

// QInsertWebhookEvent records a payment-provider event for deduplication.
// A duplicate delivery inserts nothing.
const QInsertWebhookEvent = `--sql 64b8d0f5-29c3-4e7a-b164-f90d85c2a317
insert into webhook_events (id, provider, provider_event_id, event_type, payload, received_at)
values ($1::uuid, $2::text, $3::text, $4::text, $5::jsonb, now())
on conflict (provider, provider_event_id) do nothing;
`

const QSelectWebhookEvent = `--sql 02a7f4c9-85d1-4b60-9e38-c53b12d8f7a6
select id, processed_at is not null
from webhook_events
where provider = $1::text
  and provider_event_id = $2::text
limit 1;
`

const QMarkWebhookProcessed = `--sql 4a31e6b8-d70f-4c25-8a94-16f5c0e9d2b7
update webhook_events
set processed_at = now(), processing_error = ''
where id = $1::uuid;
`

const QMarkWebhookError = `--sql ef95c2a0-36b7-4d18-b5e2-709a4f8d61c3
update webhook_events
set processing_error = $2::text
where id = $1::uuid;
`
