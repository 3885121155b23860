package sqlinline

// QInsertTrack publishes a completed generation. The unique order_id keeps a
// redelivered job from creating a second track.
const QInsertTrack = `--sql 15d0b9e7-6c28-4f43-a8d1-72e4f50c96ab
insert into tracks (id, order_id, principal_id, title, style, audio_url, duration_sec, created_at)
values ($1::text, $2::text, $3::uuid, $4::text, $5::text, $6::text, $7::int, now())
on conflict (order_id) do nothing;
`

const QSelectTrack = `--sql b7f42a0e-91d5-4c68-8b03-e6a1d9c2f580
select id, order_id, principal_id, title, coalesce(style, ''), audio_url, duration_sec, created_at
from tracks
where id = $1::text
limit 1;
`

const QListTracksByPrincipal = `--sql 3c68f1d9-05b4-4a72-9ce5-48d0b6e2a91f
select id, order_id, principal_id, title, coalesce(style, ''), audio_url, duration_sec, created_at
from tracks
where principal_id = $1::uuid
order by created_at desc
limit $2::int;
`
